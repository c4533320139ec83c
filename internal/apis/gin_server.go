package apis

import (
	"context"
	"net/http"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GinHTTPServer 基于Gin的状态查询服务器
type GinHTTPServer struct {
	server  *http.Server
	router  *gin.Engine
	nodeAPI *NodeAPI
}

// NewGinHTTPServer 创建基于Gin的HTTP服务器，address为host:port
func NewGinHTTPServer(address string, source StatusSource) *GinHTTPServer {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestLogger())
	router.Use(gin.Recovery())

	nodeAPI := NewNodeAPI(source)
	registerRoutes(router, nodeAPI)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &GinHTTPServer{
		server:  server,
		router:  router,
		nodeAPI: nodeAPI,
	}
}

// registerRoutes 注册所有路由
func registerRoutes(router *gin.Engine, nodeAPI *NodeAPI) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/node/status", nodeAPI.GetNodeStatusGin) // GET /api/v1/node/status - 节点与链路状态
		v1.GET("/health", nodeAPI.GetHealthGin)
	}

	router.GET("/health", nodeAPI.GetHealthGin)
	router.GET("/ping", nodeAPI.PingGin)
}

// requestLogger 使用logrus记录请求
func requestLogger() gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("HTTP请求")
	}
}

// Start 启动HTTP服务器，正常关闭时返回nil
func (s *GinHTTPServer) Start() error {
	logger.WithFields(logrus.Fields{
		"component": "gin_http_server",
		"address":   s.server.Addr,
	}).Info("启动Gin HTTP服务器")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止HTTP服务器
func (s *GinHTTPServer) Stop(ctx context.Context) error {
	logger.WithField("component", "gin_http_server").Info("停止Gin HTTP服务器")
	return s.server.Shutdown(ctx)
}

// GetRouter 获取Gin路由器（用于测试）
func (s *GinHTTPServer) GetRouter() *gin.Engine {
	return s.router
}
