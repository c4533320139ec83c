package modem

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/protocol"
	"github.com/sirupsen/logrus"
)

// EndPacket 返回值
const (
	TxFailedPeer    = -1 // 模块拒绝或未收到确认
	TxFailedTimeout = -2 // 等待结果超时
	TxFailedIO      = -3 // 串口读写失败
)

// Timeouts 各类交换的等待时间
type Timeouts struct {
	Command time.Duration
	Join    time.Duration
	Tx      time.Duration
}

// DefaultTimeouts 默认等待时间
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Command: constants.DefaultCommandTimeout,
		Join:    constants.DefaultJoinTimeout,
		Tx:      constants.DefaultTxTimeout,
	}
}

// Modem LoRaWAN无线模块驱动
type Modem struct {
	tr       Transceiver
	timeouts Timeouts
	log      *logrus.Entry

	packet   bytes.Buffer
	inPacket bool
}

// New 创建无线模块驱动
func New(tr Transceiver, timeouts Timeouts) *Modem {
	return &Modem{
		tr:       tr,
		timeouts: timeouts,
		log:      logger.Component("radio"),
	}
}

// command 发送一条需要+OK确认的设置命令
func (m *Modem) command(ctx context.Context, cmd string) error {
	resp, err := m.tr.Exchange(ctx, Request{
		Command: cmd,
		Until:   []string{constants.RespOK, constants.RespErr},
		Timeout: m.timeouts.Command,
	})
	if err != nil {
		return err
	}
	return protocol.CheckReply(cmd, resp)
}

// Begin 检查模块并设置频段
func (m *Modem) Begin(ctx context.Context, frequencyPlan string) error {
	band, ok := constants.BandIndex[frequencyPlan]
	if !ok {
		return errors.New(errors.ErrInvalidParameter, fmt.Sprintf("unknown frequency plan %q", frequencyPlan))
	}
	if err := m.command(ctx, constants.CmdPing); err != nil {
		return err
	}
	return m.command(ctx, protocol.FormatSetting(constants.CmdBand, band))
}

// JoinOTAA 写入非空的凭据后发起OTAA入网。
// 凭据为空时沿用模块内已保存的值。
func (m *Modem) JoinOTAA(ctx context.Context, appEUI, appKey, devEUI string) error {
	settings := []struct {
		cmd   string
		value string
	}{
		{constants.CmdAppEUI, appEUI},
		{constants.CmdAppKey, appKey},
		{constants.CmdDevEUI, devEUI},
	}
	for _, s := range settings {
		if s.value == "" {
			continue
		}
		if err := m.command(ctx, protocol.FormatSetting(s.cmd, s.value)); err != nil {
			return err
		}
	}

	resp, err := m.tr.Exchange(ctx, Request{
		Command: constants.CmdJoin,
		Until:   []string{constants.RespJoinOK, constants.RespJoinFailed, constants.RespErr},
		Timeout: m.timeouts.Join,
	})
	if err != nil {
		return errors.Wrap(errors.ErrJoinFailed, "join request", err)
	}
	if !strings.Contains(resp, constants.RespJoinOK) {
		return errors.New(errors.ErrJoinFailed, fmt.Sprintf("join refused: %q", resp))
	}
	return nil
}

// SetMinPollInterval 设置最小下行轮询间隔（秒）
func (m *Modem) SetMinPollInterval(ctx context.Context, seconds int) error {
	return m.command(ctx, protocol.FormatSetting(constants.CmdPollPeriod, seconds))
}

// SetDataRate 设置数据速率
func (m *Modem) SetDataRate(ctx context.Context, dataRate int) error {
	return m.command(ctx, protocol.FormatSetting(constants.CmdDataRate, dataRate))
}

// BeginPacket 开始组装一个上行帧
func (m *Modem) BeginPacket() {
	m.packet.Reset()
	m.inPacket = true
}

// Write 向当前上行帧追加数据
func (m *Modem) Write(p []byte) (int, error) {
	if !m.inPacket {
		return 0, errors.New(errors.ErrInvalidParameter, "write outside of BeginPacket/EndPacket")
	}
	return m.packet.Write(p)
}

// EndPacket 发送当前上行帧。成功时返回发送的字节数，失败时返回不大于0的值。
func (m *Modem) EndPacket(ctx context.Context, confirmed bool) int {
	m.inPacket = false
	payload := append([]byte(nil), m.packet.Bytes()...)
	cmd := protocol.FormatUplink(confirmed, len(payload))

	until := []string{constants.RespOK, constants.RespErr}
	if confirmed {
		until = []string{constants.RespAck, constants.RespNoAck, constants.RespErr}
	}

	resp, err := m.tr.Exchange(ctx, Request{
		Command: cmd,
		Payload: payload,
		Until:   until,
		Timeout: m.timeouts.Tx,
	})
	switch {
	case errors.IsErrCode(err, errors.ErrModemTimeout):
		m.log.WithError(err).Warn("上行帧等待结果超时")
		return TxFailedTimeout
	case err != nil:
		m.log.WithError(err).Warn("上行帧发送失败")
		return TxFailedIO
	}

	if _, found := protocol.PeerError(resp); found {
		return TxFailedPeer
	}
	if confirmed && strings.Contains(resp, constants.RespNoAck) {
		return TxFailedPeer
	}
	return len(payload)
}

// LockKeys 锁定模块内的AppKey，之后无法再读出
func (m *Modem) LockKeys(ctx context.Context) error {
	return m.command(ctx, constants.CmdLockKeys)
}
