package apis

import (
	"net/http"
	"time"

	"github.com/bujia-iot/sensor-node/pkg/link"
	"github.com/bujia-iot/sensor-node/pkg/node"
	"github.com/gin-gonic/gin"
)

// Version 状态接口返回的固件版本
const Version = "1.0.0"

// StatusSource 节点状态来源，node.Node实现该接口
type StatusSource interface {
	Status() node.Status
}

// NodeAPI 节点状态查询接口，只读
type NodeAPI struct {
	source    StatusSource
	startedAt time.Time
}

// NewNodeAPI 创建节点状态接口
func NewNodeAPI(source StatusSource) *NodeAPI {
	return &NodeAPI{source: source, startedAt: time.Now()}
}

// GetHealthGin 健康检查
func (api *NodeAPI) GetHealthGin(c *gin.Context) {
	st := api.source.Status()

	status := "healthy"
	if st.Link.State == link.StateHalted.String() {
		status = "halted"
	}

	result := HealthResponse{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Version:   Version,
		Services: map[string]string{
			"radio":       st.Link.State,
			"http_server": "running",
		},
	}
	c.JSON(http.StatusOK, NewStandardResponse(result, "节点健康", 0))
}

// GetNodeStatusGin 获取节点状态
func (api *NodeAPI) GetNodeStatusGin(c *gin.Context) {
	st := api.source.Status()
	result := NodeStatusResponse{
		BootID:      st.BootID,
		Name:        st.Name,
		Provisioned: st.Provisioned,
		Bootstrap:   st.Outcome,
		Cycles:      st.Cycles,
		Link:        st.Link,
		Uptime:      time.Since(api.startedAt).Truncate(time.Second).String(),
	}
	c.JSON(http.StatusOK, NewStandardResponse(result, "获取节点状态成功", 0))
}

// PingGin 简单连通性测试
func (api *NodeAPI) PingGin(c *gin.Context) {
	result := map[string]interface{}{
		"message": "pong",
		"time":    time.Now().Unix(),
		"status":  "ok",
	}
	c.JSON(http.StatusOK, NewStandardResponse(result, "pong", 0))
}
