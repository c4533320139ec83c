package provision

import (
	"context"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/nvm"
	"github.com/sirupsen/logrus"
)

// Gate 启动时根据存储中的配置记录判断是否需要进入配置流程
type Gate struct {
	acc      *nvm.Accessor
	magic    byte
	restamp  string
	attempts int
	log      *logrus.Entry
}

// NewGate 创建初始化检查，restamp为always或guarded
func NewGate(acc *nvm.Accessor, restamp string, attempts int) *Gate {
	if restamp != constants.RestampGuarded {
		restamp = constants.RestampAlways
	}
	if attempts < 1 {
		attempts = constants.DefaultWriteAttempts
	}
	return &Gate{
		acc:      acc,
		magic:    constants.MagicNumber,
		restamp:  restamp,
		attempts: attempts,
		log:      logger.Component("gate"),
	}
}

// Check 读取配置记录并判断是否已配置。读取失败按未配置处理。
func (g *Gate) Check(ctx context.Context) (nvm.Record, bool) {
	rec, err := g.acc.ReadRecord(ctx)
	if err != nil {
		g.log.WithFields(logrus.Fields{
			"record": rec.String(),
			"error":  err.Error(),
		}).Warn("读取配置记录失败，按未配置处理")
	}
	configured := rec.Configured(g.magic)
	g.log.WithFields(logrus.Fields{
		"record":     rec.String(),
		"configured": configured,
	}).Info("配置记录检查")
	return rec, configured
}

// NeedsProvisioning 只有魔数、状态、校验全部匹配时返回false
func (g *Gate) NeedsProvisioning(ctx context.Context) bool {
	_, configured := g.Check(ctx)
	return !configured
}

// CredentialsAlreadyInit 凭据是否已在之前的启动中配置过
func (g *Gate) CredentialsAlreadyInit(ctx context.Context) bool {
	return !g.NeedsProvisioning(ctx)
}

// Stamp 写入基线记录 {M,0,M}。guarded策略下current已是基线时跳过，返回是否执行了写入。
func (g *Gate) Stamp(ctx context.Context, current nvm.Record) (bool, error) {
	baseline := nvm.Baseline(g.magic)
	if g.restamp == constants.RestampGuarded && current == baseline {
		g.log.Debug("配置记录已是基线，跳过写入")
		return false, nil
	}
	if err := g.acc.WriteRecord(ctx, baseline, g.attempts); err != nil {
		return true, err
	}
	return true, nil
}

// Finalize 写入配置完成记录：地址1写1，地址2写M+1
func (g *Gate) Finalize(ctx context.Context) error {
	return g.acc.WriteStatus(ctx, nvm.Provisioned(g.magic), g.attempts)
}
