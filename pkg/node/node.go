// Package node 传感器节点主流程：启动阶段完成无线模块初始化和凭据配置，
// 之后按固定周期采集温湿度并发送（未连接时改为入网）。
package node

import (
	"context"
	"sync"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/link"
	"github.com/bujia-iot/sensor-node/pkg/payload"
	"github.com/bujia-iot/sensor-node/pkg/provision"
	"github.com/bujia-iot/sensor-node/pkg/sensor"
	"github.com/sirupsen/logrus"
)

// Provisioner 启动配置流程
type Provisioner interface {
	Run(ctx context.Context) (provision.Outcome, error)
}

// Status 节点状态快照
type Status struct {
	BootID      string      `json:"bootId"`
	Name        string      `json:"name"`
	Provisioned bool        `json:"provisioned"`
	Outcome     string      `json:"bootstrap"`
	Cycles      int         `json:"cycles"`
	Link        link.Status `json:"link"`
}

// Node 传感器节点
type Node struct {
	link        *link.Machine
	provisioner Provisioner
	sensor      sensor.Sensor
	interval    time.Duration
	bootID      string
	name        string
	log         *logrus.Entry

	mu          sync.RWMutex
	outcome     provision.Outcome
	provisioned bool
	cycles      int
}

// New 创建节点，interval为采集发送周期
func New(l *link.Machine, p Provisioner, s sensor.Sensor, interval time.Duration) *Node {
	if interval <= 0 {
		interval = constants.DefaultDutyCycle
	}
	return &Node{
		link:        l,
		provisioner: p,
		sensor:      s,
		interval:    interval,
		log:         logger.Component("node"),
	}
}

// WithIdentity 设置节点名称和本次启动的ID，仅用于状态查询
func (n *Node) WithIdentity(name, bootID string) *Node {
	n.name = name
	n.bootID = bootID
	return n
}

// Boot 启动阶段：初始化无线模块，再执行凭据配置。
// 无线模块启动失败返回ErrModemStart；收尾写入未确认只记录日志，下次启动会重新配置。
func (n *Node) Boot(ctx context.Context) error {
	if err := n.link.Init(ctx); err != nil {
		return err
	}

	outcome, err := n.provisioner.Run(ctx)
	n.mu.Lock()
	n.outcome = outcome
	n.provisioned = outcome != provision.OutcomeUnknown && err == nil
	n.mu.Unlock()

	switch {
	case err == nil:
	case errors.IsErrCode(err, errors.ErrRecordWrite):
		n.log.WithField("error", err.Error()).Error("配置记录未能写入，下次启动将重新配置")
	default:
		return err
	}

	n.log.WithField("outcome", outcome.String()).Info("启动阶段完成")
	return nil
}

// Cycle 执行一个周期：读取传感器并编码，未连接时入网，已连接时发送
func (n *Node) Cycle(ctx context.Context) error {
	n.mu.Lock()
	n.cycles++
	n.mu.Unlock()

	temperature := n.sensor.ReadTemperature()
	humidity := n.sensor.ReadHumidity()
	frame := payload.Encode(temperature, humidity)

	n.log.WithFields(logrus.Fields{
		"temperature": temperature,
		"humidity":    humidity,
		"link":        n.link.State().String(),
	}).Debug("采集完成")

	switch n.link.State() {
	case link.StateHalted:
		return errors.New(errors.ErrModemStart, "radio module halted")
	case link.StateConnected:
		return n.link.Send(ctx, frame)
	default:
		return n.link.EnsureConnected(ctx)
	}
}

// Run 循环执行Cycle，每个周期结束后等待interval再开始下一周期，与上一个周期的结果无关。
// ctx取消时返回nil；无线模块处于halted时返回ErrModemStart。
func (n *Node) Run(ctx context.Context) error {
	timer := time.NewTimer(n.interval)
	defer timer.Stop()

	for {
		err := n.Cycle(ctx)
		if errors.IsErrCode(err, errors.ErrModemStart) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		timer.Reset(n.interval)
		select {
		case <-ctx.Done():
			n.log.Info("节点主循环退出")
			return nil
		case <-timer.C:
		}
	}
}

// Status 返回节点状态快照
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Status{
		BootID:      n.bootID,
		Name:        n.name,
		Provisioned: n.provisioned,
		Outcome:     n.outcome.String(),
		Cycles:      n.cycles,
		Link:        n.link.Status(),
	}
}
