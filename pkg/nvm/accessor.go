// Package nvm 通过无线模块的AT$NVM命令读写其托管的非易失存储。
package nvm

import (
	"context"
	"fmt"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/modem"
	"github.com/bujia-iot/sensor-node/pkg/protocol"
	"github.com/sirupsen/logrus"
)

// Accessor 非易失存储访问器
type Accessor struct {
	tr     modem.Transceiver
	settle time.Duration
	log    *logrus.Entry
}

// NewAccessor 创建存储访问器，settle为命令发出后等待响应的固定时间
func NewAccessor(tr modem.Transceiver, settle time.Duration) *Accessor {
	return &Accessor{
		tr:     tr,
		settle: settle,
		log:    logger.Component("nvm"),
	}
}

// Read 读取一个字节。
// 通信失败返回ErrModemIO/ErrModemTimeout，模块返回+ERR时为ErrPeerError，
// 响应无法解析时为ErrMalformedResponse。
func (a *Accessor) Read(ctx context.Context, address byte) (byte, error) {
	cmd := protocol.FormatNVMRead(address)
	resp, err := a.tr.Exchange(ctx, modem.Request{Command: cmd, Settle: a.settle})
	if err != nil {
		return constants.NVMSentinel, err
	}
	return protocol.ParseNVMValue(resp)
}

// ReadOrSentinel 任何失败都返回255
func (a *Accessor) ReadOrSentinel(ctx context.Context, address byte) byte {
	v, err := a.Read(ctx, address)
	if err != nil {
		a.log.WithFields(logrus.Fields{
			"address": address,
			"error":   err.Error(),
		}).Warn("读取存储失败，按哨兵值处理")
		return constants.NVMSentinel
	}
	return v
}

// Write 写入一个字节，只有响应包含+OK时返回nil
func (a *Accessor) Write(ctx context.Context, address, value byte) error {
	cmd := protocol.FormatNVMWrite(address, value)
	resp, err := a.tr.Exchange(ctx, modem.Request{Command: cmd, Settle: a.settle})
	if err != nil {
		return err
	}
	return protocol.CheckReply(cmd, resp)
}

// WriteConfirmed 写入直到模块确认，最多尝试attempts次
func (a *Accessor) WriteConfirmed(ctx context.Context, address, value byte, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = a.Write(ctx, address, value)
		if lastErr == nil {
			return nil
		}
		a.log.WithFields(logrus.Fields{
			"address": address,
			"value":   value,
			"attempt": i,
			"error":   lastErr.Error(),
		}).Warn("存储写入未确认")
	}
	return errors.Wrap(errors.ErrRecordWrite,
		fmt.Sprintf("write %d to address %d unconfirmed after %d attempts", value, address, attempts), lastErr)
}
