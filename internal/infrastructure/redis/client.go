package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/config"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
)

// 全局Redis客户端实例
var redisClient *redis.Client

// GetClient 获取Redis客户端实例
func GetClient() *redis.Client {
	return redisClient
}

// NewClient 按配置创建客户端并测试连接
func NewClient(ctx context.Context, redisConfig config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         redisConfig.Address,
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		MinIdleConns: redisConfig.MinIdleConns,
		DialTimeout:  time.Duration(redisConfig.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(redisConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(redisConfig.WriteTimeout) * time.Second,
	})

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接测试失败: %w", err)
	}
	return client, nil
}

// InitClient 初始化全局Redis连接，重复调用时先关闭旧连接
func InitClient(ctx context.Context, redisConfig config.RedisConfig) error {
	client, err := NewClient(ctx, redisConfig)
	if err != nil {
		return err
	}
	if err := Close(); err != nil {
		logger.Warnf("%v", err)
	}
	redisClient = client

	logger.Info("Redis连接初始化成功")
	return nil
}

// Close 关闭Redis连接
func Close() error {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			return fmt.Errorf("关闭Redis连接失败: %w", err)
		}
		redisClient = nil
		logger.Info("Redis连接已关闭")
	}
	return nil
}
