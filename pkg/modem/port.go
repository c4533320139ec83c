// Package modem 封装与LoRaWAN无线模块之间的AT命令交换。
//
// 无线模块和其托管的非易失存储共用同一条串口字节流，
// 所有请求/响应通过 ATPort.Exchange 串行化，保证两者不会交错。
package modem

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Port 是串口的最小抽象，go.bug.st/serial 的 serial.Port 满足该接口。
// 读超时到期时 Read 返回 (0, nil)。
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

// Request 一次AT命令交换
type Request struct {
	Command string // 不含行结束符
	Payload []byte // 命令行之后紧跟的原始数据（上行帧）

	// Settle 不为0时：发送后固定等待，再读出缓冲区中的全部数据
	Settle time.Duration

	// Until 不为空时：持续读取直到响应包含其中任一标记，或超过Timeout
	Until   []string
	Timeout time.Duration
}

// Transceiver 与无线模块进行一次同步的命令/响应交换
type Transceiver interface {
	Exchange(ctx context.Context, req Request) (string, error)
}

// ATPort 基于串口的Transceiver实现
type ATPort struct {
	mu          sync.Mutex
	port        Port
	readTimeout time.Duration
	logHexDump  bool
	log         *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

// NewATPort 创建AT命令端口
func NewATPort(port Port, readTimeout time.Duration, logHexDump bool) *ATPort {
	if readTimeout <= 0 {
		readTimeout = constants.DefaultReadTimeout
	}
	return &ATPort{
		port:        port,
		readTimeout: readTimeout,
		logHexDump:  logHexDump,
		log:         logger.Component("modem"),
		sleep:       Sleep,
	}
}

// Exchange 发送命令并收集响应。未收到任何数据时返回ErrModemTimeout。
func (p *ATPort) Exchange(ctx context.Context, req Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.drain(); err != nil {
		return "", err
	}
	if err := p.port.SetReadTimeout(p.readTimeout); err != nil {
		return "", errors.Wrap(errors.ErrModemIO, "set read timeout", err)
	}

	frame := []byte(req.Command + constants.ATLineEnding)
	frame = append(frame, req.Payload...)
	logger.HexDump("modem TX", frame, p.logHexDump)
	p.log.WithField("cmd", req.Command).Debug("发送AT命令")

	if _, err := p.port.Write(frame); err != nil {
		return "", errors.Wrap(errors.ErrModemIO, fmt.Sprintf("write %q", req.Command), err)
	}

	var (
		response string
		err      error
	)
	if len(req.Until) > 0 {
		response, err = p.readUntil(ctx, req)
	} else {
		response, err = p.readSettled(ctx, req)
	}
	logger.HexDump("modem RX", []byte(response), p.logHexDump)
	if err != nil {
		return response, err
	}
	p.log.WithFields(logrus.Fields{
		"cmd":      req.Command,
		"response": strings.TrimSpace(response),
	}).Debug("收到AT响应")
	return response, nil
}

// drain 丢弃上一次交互之后残留的输入（迟到的事件或响应），避免被当作本次命令的回复
func (p *ATPort) drain() error {
	if err := p.port.SetReadTimeout(constants.DrainReadTimeout); err != nil {
		return errors.Wrap(errors.ErrModemIO, "set drain timeout", err)
	}

	var stale []byte
	buf := make([]byte, 128)
	for len(stale) < constants.DrainMaxBytes {
		n, err := p.port.Read(buf)
		stale = append(stale, buf[:n]...)
		if err == io.EOF || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return errors.Wrap(errors.ErrModemIO, "drain modem input", err)
		}
	}
	if len(stale) > 0 {
		logger.HexDump("modem RX (discarded)", stale, p.logHexDump)
		p.log.WithField("bytes", len(stale)).Debug("丢弃残留输入")
	}
	return nil
}

// readSettled 固定等待后读出全部可用数据，直到一次读取超时
func (p *ATPort) readSettled(ctx context.Context, req Request) (string, error) {
	if err := p.sleep(ctx, req.Settle); err != nil {
		return "", err
	}

	var sb strings.Builder
	buf := make([]byte, 128)
	for {
		n, err := p.port.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				break
			}
			return sb.String(), errors.Wrap(errors.ErrModemIO, fmt.Sprintf("read reply to %q", req.Command), err)
		}
		if n == 0 {
			break
		}
	}

	if sb.Len() == 0 {
		return "", errors.New(errors.ErrModemTimeout, fmt.Sprintf("no reply to %q", req.Command))
	}
	return sb.String(), nil
}

// readUntil 读取直到出现任一结束标记
func (p *ATPort) readUntil(ctx context.Context, req Request) (string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultCommandTimeout
	}
	deadline := time.Now().Add(timeout)

	var sb strings.Builder
	buf := make([]byte, 128)
	for {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}

		n, err := p.port.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
			if containsAny(sb.String(), req.Until) {
				return sb.String(), nil
			}
		}
		if err != nil {
			return sb.String(), errors.Wrap(errors.ErrModemIO, fmt.Sprintf("read reply to %q", req.Command), err)
		}
		if !time.Now().Before(deadline) {
			return sb.String(), errors.New(errors.ErrModemTimeout,
				fmt.Sprintf("no %v in reply to %q after %s", req.Until, req.Command, timeout))
		}
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Sleep 可被取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
