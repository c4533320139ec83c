package provision

import (
	"context"
	"io"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Outcome 启动配置阶段的结果
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeAlreadyProvisioned
	OutcomeProvisioned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyProvisioned:
		return "alreadyProvisioned"
	case OutcomeProvisioned:
		return "provisioned"
	default:
		return "unknown"
	}
}

// KeyLocker 向无线模块发送锁定密钥读取的命令
type KeyLocker interface {
	LockKeys(ctx context.Context) error
}

// Bootstrap 串联初始化检查、命令解释器和收尾写入
type Bootstrap struct {
	gate    *Gate
	handler *Handler
	store   *credentials.Store
	locker  KeyLocker
	console io.ReadWriter

	cache     credentials.Cache
	deviceKey string

	log *logrus.Entry
}

// NewBootstrap 创建启动配置流程
func NewBootstrap(gate *Gate, handler *Handler, locker KeyLocker, console io.ReadWriter) *Bootstrap {
	return &Bootstrap{
		gate:    gate,
		handler: handler,
		store:   handler.store,
		locker:  locker,
		console: console,
		log:     logger.Component("bootstrap"),
	}
}

// WithCache 设置凭据缓存，deviceKey为节点标识
func (b *Bootstrap) WithCache(cache credentials.Cache, deviceKey string) *Bootstrap {
	b.cache = cache
	b.deviceKey = deviceKey
	return b
}

// Run 执行启动配置流程。
// 已配置时直接返回；否则写入基线、等待操作员完成配置、写入完成记录并锁定密钥。
// 收尾写入未确认时仍会发送锁定命令，并返回ErrRecordWrite，下次启动将重新配置。
func (b *Bootstrap) Run(ctx context.Context) (Outcome, error) {
	rec, configured := b.gate.Check(ctx)
	if configured {
		b.restoreFromCache(ctx)
		return OutcomeAlreadyProvisioned, nil
	}

	if written, err := b.gate.Stamp(ctx, rec); err != nil {
		b.log.WithField("error", err.Error()).Warn("写入基线记录未确认，继续配置流程")
	} else if written {
		b.log.Info("已写入基线记录")
	}

	if err := b.handler.Run(ctx, b.console); err != nil {
		return OutcomeUnknown, err
	}

	finalizeErr := b.gate.Finalize(ctx)
	if finalizeErr != nil {
		b.log.WithField("error", finalizeErr.Error()).Error("写入配置完成记录未确认")
	}

	if err := b.locker.LockKeys(ctx); err != nil {
		b.log.WithField("error", err.Error()).Warn("锁定密钥读取失败")
	}

	if finalizeErr != nil {
		return OutcomeProvisioned, finalizeErr
	}
	b.saveToCache(ctx)
	return OutcomeProvisioned, nil
}

func (b *Bootstrap) restoreFromCache(ctx context.Context) {
	if b.cache == nil {
		return
	}
	snap, err := b.cache.Load(ctx, b.deviceKey)
	if err != nil {
		b.log.WithField("error", err.Error()).Warn("从缓存恢复凭据失败，使用模块中保存的密钥")
		return
	}
	b.store.Restore(snap)
	b.log.WithField("deviceKey", b.deviceKey).Info("已从缓存恢复凭据")
}

func (b *Bootstrap) saveToCache(ctx context.Context) {
	if b.cache == nil {
		return
	}
	// 密钥读取已锁定，AppKey不再离开本机
	snap := b.store.Snapshot()
	snap.AppKey = ""
	if err := b.cache.Save(ctx, b.deviceKey, snap); err != nil {
		b.log.WithField("error", err.Error()).Warn("凭据写入缓存失败")
	}
}
