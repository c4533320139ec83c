package nvm

import (
	"context"
	"fmt"

	"github.com/bujia-iot/sensor-node/pkg/constants"
)

// Record 配置记录：地址0魔数，地址1状态，地址2校验
type Record struct {
	Magic    byte
	State    byte
	Checksum byte
}

// Baseline 进入配置流程前写入的基线记录 {M,0,M}
func Baseline(magic byte) Record {
	return Record{Magic: magic, State: constants.StateUnconfigured, Checksum: magic}
}

// Provisioned 配置完成后的记录 {M,1,M+1}
func Provisioned(magic byte) Record {
	return Record{Magic: magic, State: constants.StateConfigured, Checksum: magic + constants.StateConfigured}
}

// Consistent 校验字节等于 magic+state（模256）
func (r Record) Consistent() bool {
	return r.Magic+r.State == r.Checksum
}

// Configured 三项检查同时通过时才视为已配置
func (r Record) Configured(magic byte) bool {
	return r.Magic == magic && r.State == constants.StateConfigured && r.Consistent()
}

func (r Record) String() string {
	return fmt.Sprintf("magic=%d state=%d checksum=%d", r.Magic, r.State, r.Checksum)
}

// ReadRecord 读取配置记录的三个字节。
// 任一地址读取失败时对应字节为255，同时返回第一个错误。
func (a *Accessor) ReadRecord(ctx context.Context) (Record, error) {
	var (
		rec      Record
		firstErr error
	)
	fields := []struct {
		addr byte
		dst  *byte
	}{
		{constants.AddrMagic, &rec.Magic},
		{constants.AddrState, &rec.State},
		{constants.AddrChecksum, &rec.Checksum},
	}
	for _, f := range fields {
		v, err := a.Read(ctx, f.addr)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		*f.dst = v
	}
	return rec, firstErr
}

// WriteRecord 依次写入三个字节，每个字节最多尝试attempts次
func (a *Accessor) WriteRecord(ctx context.Context, rec Record, attempts int) error {
	if err := a.WriteConfirmed(ctx, constants.AddrMagic, rec.Magic, attempts); err != nil {
		return err
	}
	return a.WriteStatus(ctx, rec, attempts)
}

// WriteStatus 只写状态和校验字节
func (a *Accessor) WriteStatus(ctx context.Context, rec Record, attempts int) error {
	if err := a.WriteConfirmed(ctx, constants.AddrState, rec.State, attempts); err != nil {
		return err
	}
	return a.WriteConfirmed(ctx, constants.AddrChecksum, rec.Checksum, attempts)
}
