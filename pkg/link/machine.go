// Package link LoRaWAN链路状态机：入网、发送，以及连续发送失败后强制重新入网。
package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/credentials"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/modem"
	"github.com/bujia-iot/sensor-node/pkg/payload"
	"github.com/sirupsen/logrus"
)

// Radio 链路状态机依赖的无线模块操作，modem.Modem实现该接口
type Radio interface {
	Begin(ctx context.Context, frequencyPlan string) error
	JoinOTAA(ctx context.Context, appEUI, appKey, devEUI string) error
	SetMinPollInterval(ctx context.Context, seconds int) error
	SetDataRate(ctx context.Context, dataRate int) error
	BeginPacket()
	Write(p []byte) (int, error)
	EndPacket(ctx context.Context, confirmed bool) int
}

// State 链路状态
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateHalted // 无线模块启动失败，不再尝试任何操作
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateHalted:
		return "halted"
	default:
		return "disconnected"
	}
}

// Options 链路参数
type Options struct {
	FrequencyPlan   string
	MinPollInterval int // 秒
	DataRate        int
	ErrorThreshold  int // errorCount超过该值后断开
	FailurePause    time.Duration
	JoinSettle      time.Duration
}

// DefaultOptions 默认链路参数
func DefaultOptions() Options {
	return Options{
		FrequencyPlan:   constants.DefaultFrequencyPlan,
		MinPollInterval: constants.DefaultMinPollInterval,
		DataRate:        constants.DefaultDataRate,
		ErrorThreshold:  constants.DefaultErrorThreshold,
		FailurePause:    constants.DefaultFailurePause,
		JoinSettle:      constants.DefaultJoinSettle,
	}
}

// Status 链路状态快照
type Status struct {
	State      string    `json:"state"`
	ErrorCount int       `json:"errorCount"`
	Joins      int       `json:"joins"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	LastError  string    `json:"lastError,omitempty"`
	LastSentAt time.Time `json:"lastSentAt,omitempty"`
}

// Machine 链路状态机。
// opMu串行化对无线模块的操作，mu保护状态字段，查询状态不会被进行中的入网或发送阻塞。
type Machine struct {
	opMu sync.Mutex

	mu         sync.RWMutex
	state      State
	errorCount int
	joins      int
	sent       int
	failed     int
	lastErr    error
	lastSentAt time.Time

	radio Radio
	creds *credentials.Store
	opts  Options
	log   *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New 创建链路状态机，初始状态为disconnected
func New(radio Radio, creds *credentials.Store, opts Options) *Machine {
	return &Machine{
		state: StateDisconnected,
		radio: radio,
		creds: creds,
		opts:  opts,
		log:   logger.Component("link"),
		sleep: modem.Sleep,
		now:   time.Now,
	}
}

// Init 按配置的频段启动无线模块。失败时进入halted并返回ErrModemStart。
func (m *Machine) Init(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.radio.Begin(ctx, m.opts.FrequencyPlan); err != nil {
		wrapped := errors.Wrap(errors.ErrModemStart, "failed to start radio module", err)
		m.mu.Lock()
		m.state = StateHalted
		m.lastErr = wrapped
		m.mu.Unlock()
		m.log.WithField("error", err.Error()).Error("无线模块启动失败")
		return wrapped
	}

	m.log.WithField("frequencyPlan", m.opts.FrequencyPlan).Info("无线模块已启动")
	return nil
}

// EnsureConnected 未连接时使用凭据发起入网。
// 入网失败保持disconnected并返回ErrJoinFailed，由调用方在下一个周期重试。
func (m *Machine) EnsureConnected(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch m.State() {
	case StateConnected:
		return nil
	case StateHalted:
		return errors.New(errors.ErrModemStart, "radio module halted")
	}

	snap := m.creds.Snapshot()
	if err := m.radio.JoinOTAA(ctx, snap.AppEUI, snap.AppKey, snap.DevEUI); err != nil {
		m.recordError(err)
		m.log.WithField("error", err.Error()).Warn("入网失败，下个周期重试")
		if errors.IsErrCode(err, errors.ErrJoinFailed) {
			return err
		}
		return errors.Wrap(errors.ErrJoinFailed, "join", err)
	}

	if err := m.radio.SetMinPollInterval(ctx, m.opts.MinPollInterval); err != nil {
		m.log.WithField("error", err.Error()).Warn("设置最小轮询间隔失败")
	}
	if err := m.radio.SetDataRate(ctx, m.opts.DataRate); err != nil {
		m.log.WithField("error", err.Error()).Warn("设置数据速率失败")
	}
	if err := m.sleep(ctx, m.opts.JoinSettle); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StateConnected
	m.errorCount = 0
	m.joins++
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"devEui": snap.DevEUI,
		"joins":  m.Status().Joins,
	}).Info("已入网")
	return nil
}

// Send 发送一帧需要确认的上行数据，不排队也不重发。
// 失败时errorCount加1并暂停FailurePause；errorCount超过阈值时断开并清零，下个周期重新入网。
func (m *Machine) Send(ctx context.Context, p [payload.Size]byte) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch m.State() {
	case StateHalted:
		return errors.New(errors.ErrModemStart, "radio module halted")
	case StateDisconnected:
		return errors.New(errors.ErrNotConnected, "send while disconnected")
	}

	m.radio.BeginPacket()
	result := -1
	if _, err := m.radio.Write(p[:]); err != nil {
		m.log.WithField("error", err.Error()).Warn("写入上行帧失败")
	} else {
		result = m.radio.EndPacket(ctx, true)
	}

	if result > 0 {
		m.mu.Lock()
		m.errorCount = 0
		m.sent++
		m.lastSentAt = m.now()
		m.mu.Unlock()
		return nil
	}

	sendErr := errors.New(errors.ErrSendFailed, fmt.Sprintf("uplink failed (result %d)", result))
	m.mu.Lock()
	m.errorCount++
	m.failed++
	m.lastErr = sendErr
	count := m.errorCount
	if m.errorCount > m.opts.ErrorThreshold {
		m.state = StateDisconnected
		m.errorCount = 0
	}
	m.mu.Unlock()

	entry := m.log.WithFields(logrus.Fields{
		"result":     result,
		"errorCount": count,
	})
	if count > m.opts.ErrorThreshold {
		entry.Warn("连续发送失败超过阈值，断开链路")
	} else {
		entry.Warn("发送失败")
	}

	if err := m.sleep(ctx, m.opts.FailurePause); err != nil {
		return err
	}
	return sendErr
}

// State 当前状态
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ErrorCount 当前连续失败次数
func (m *Machine) ErrorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorCount
}

// Status 返回状态快照
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Status{
		State:      m.state.String(),
		ErrorCount: m.errorCount,
		Joins:      m.joins,
		Sent:       m.sent,
		Failed:     m.failed,
		LastSentAt: m.lastSentAt,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func (m *Machine) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
