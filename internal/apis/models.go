package apis

import (
	"time"

	"github.com/bujia-iot/sensor-node/pkg/link"
)

// StandardResponse 标准API响应格式
type StandardResponse struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Success bool        `json:"success"`
	Time    int64       `json:"time"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

// NodeStatusResponse 节点状态
type NodeStatusResponse struct {
	BootID      string      `json:"bootId"`
	Name        string      `json:"name"`
	Provisioned bool        `json:"provisioned"`
	Bootstrap   string      `json:"bootstrap"`
	Cycles      int         `json:"cycles"`
	Link        link.Status `json:"link"`
	Uptime      string      `json:"uptime"`
}

// NewStandardResponse 创建标准响应
func NewStandardResponse(data interface{}, message string, code int) StandardResponse {
	return StandardResponse{
		Code:    code,
		Data:    data,
		Message: message,
		Success: code == 0,
		Time:    time.Now().Unix(),
	}
}
