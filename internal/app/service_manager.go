// Package app 按配置组装节点的各个组件。
package app

import (
	"context"
	"io"
	"time"

	"github.com/bujia-iot/sensor-node/internal/apis"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/config"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/redis"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/credentials"
	"github.com/bujia-iot/sensor-node/pkg/link"
	"github.com/bujia-iot/sensor-node/pkg/modem"
	"github.com/bujia-iot/sensor-node/pkg/node"
	"github.com/bujia-iot/sensor-node/pkg/nvm"
	"github.com/bujia-iot/sensor-node/pkg/provision"
	"github.com/bujia-iot/sensor-node/pkg/sensor"
)

// ServiceManager 持有节点运行所需的全部组件
type ServiceManager struct {
	Config      config.Config
	Transceiver modem.Transceiver
	Modem       *modem.Modem
	Accessor    *nvm.Accessor
	Credentials *credentials.Store
	Bootstrap   *provision.Bootstrap
	Link        *link.Machine
	Node        *node.Node

	// HTTPServer 未启用状态接口时为nil
	HTTPServer *apis.GinHTTPServer
}

// ModemTimeouts 由配置得到无线模块的等待时间
func ModemTimeouts(cfg config.Config) modem.Timeouts {
	return modem.Timeouts{
		Command: constants.DefaultCommandTimeout,
		Join:    cfg.Link.JoinTimeout(),
		Tx:      cfg.Link.TxTimeout(),
	}
}

// LinkOptions 由配置得到链路参数
func LinkOptions(cfg config.Config) link.Options {
	return link.Options{
		FrequencyPlan:   cfg.Link.FrequencyPlan,
		MinPollInterval: cfg.Link.MinPollIntervalSecond,
		DataRate:        cfg.Link.DataRate,
		ErrorThreshold:  cfg.Link.ErrorThreshold,
		FailurePause:    cfg.Link.FailurePause(),
		JoinSettle:      constants.DefaultJoinSettle,
	}
}

// NewServiceManager 在已打开的无线模块字节流和控制台上组装节点
func NewServiceManager(cfg config.Config, tr modem.Transceiver, console io.ReadWriter, bootID string) *ServiceManager {
	m := &ServiceManager{
		Config:      cfg,
		Transceiver: tr,
		Credentials: credentials.NewStore(),
	}

	m.Modem = modem.New(tr, ModemTimeouts(cfg))
	m.Accessor = nvm.NewAccessor(tr, cfg.NVM.SettleDelay())

	handler := provision.NewHandler(m.Credentials, cfg.Provisioning.SaveGuard, cfg.Provisioning.PollDelay())
	gate := provision.NewGate(m.Accessor, cfg.Provisioning.Restamp, cfg.NVM.WriteAttempts)
	m.Bootstrap = provision.NewBootstrap(gate, handler, m.Modem, console)

	m.Link = link.New(m.Modem, m.Credentials, LinkOptions(cfg))
	m.Node = node.New(m.Link, m.Bootstrap, newSensor(cfg.Sensor), cfg.DutyCycle.Interval()).
		WithIdentity(cfg.Node.Name, bootID)

	if cfg.HTTPAPIServer.Enabled {
		m.HTTPServer = apis.NewGinHTTPServer(cfg.FormatHTTPAddress(), m.Node)
	}
	return m
}

func newSensor(cfg config.SensorConfig) sensor.Sensor {
	if cfg.Mode == "none" {
		return sensor.Unavailable()
	}
	return sensor.NewFixed(cfg.Temperature, cfg.Humidity)
}

// EnableCredentialCache 连接Redis并启用凭据缓存。连接失败只记录日志，节点照常启动。
func (m *ServiceManager) EnableCredentialCache(ctx context.Context) {
	if !m.Config.Redis.Enabled {
		return
	}
	if err := redis.InitClient(ctx, m.Config.Redis); err != nil {
		logger.Warnf("凭据缓存不可用: %v", err)
		return
	}
	m.Bootstrap.WithCache(redis.NewCredentialCache(redis.GetClient(), m.Config.Redis.KeyPrefix), m.Config.Node.Name)
	logger.Info("凭据缓存已启用")
}

// StartHTTPServer 在后台启动状态接口
func (m *ServiceManager) StartHTTPServer() {
	if m.HTTPServer == nil {
		return
	}
	go func() {
		if err := m.HTTPServer.Start(); err != nil {
			logger.Errorf("启动HTTP API服务器失败: %v", err)
		}
	}()
}

// Shutdown 关闭状态接口和Redis连接
func (m *ServiceManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if m.HTTPServer != nil {
		if err := m.HTTPServer.Stop(ctx); err != nil {
			logger.Errorf("关闭HTTP API服务器失败: %v", err)
		}
	}
	return redis.Close()
}
