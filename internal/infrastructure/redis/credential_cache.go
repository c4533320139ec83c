package redis

import (
	"context"
	"strconv"

	"github.com/bujia-iot/sensor-node/pkg/credentials"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// 凭据哈希中的字段。AppKey不进入缓存，fieldAppKey只用于清理旧数据。
const (
	fieldDevEUI   = "devEui"
	fieldAppEUI   = "appEui"
	fieldAppKey   = "appKey"
	fieldComplete = "complete"
)

// CredentialCache 使用Redis哈希实现credentials.Cache，只保存DevEUI、AppEUI和完成标志
type CredentialCache struct {
	client    *redis.Client
	keyPrefix string
}

var _ credentials.Cache = (*CredentialCache)(nil)

// NewCredentialCache 创建凭据缓存，key为keyPrefix+节点标识
func NewCredentialCache(client *redis.Client, keyPrefix string) *CredentialCache {
	return &CredentialCache{client: client, keyPrefix: keyPrefix}
}

func (c *CredentialCache) key(deviceKey string) string {
	return c.keyPrefix + deviceKey
}

// Load 读取节点的凭据，不存在时返回ErrCacheMiss
func (c *CredentialCache) Load(ctx context.Context, deviceKey string) (credentials.Snapshot, error) {
	fields, err := c.client.HGetAll(ctx, c.key(deviceKey)).Result()
	if err != nil {
		return credentials.Snapshot{}, errors.Wrap(errors.ErrCacheUnavailable, "load credentials", err)
	}
	if len(fields) == 0 {
		return credentials.Snapshot{}, errors.New(errors.ErrCacheMiss, "no cached credentials for "+deviceKey)
	}

	complete, _ := strconv.ParseBool(fields[fieldComplete])
	return credentials.Snapshot{
		DevEUI:   fields[fieldDevEUI],
		AppEUI:   fields[fieldAppEUI],
		Complete: complete,
	}, nil
}

// Save 写入节点的凭据，snap中的AppKey被忽略
func (c *CredentialCache) Save(ctx context.Context, deviceKey string, snap credentials.Snapshot) error {
	key := c.key(deviceKey)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldDevEUI:   snap.DevEUI,
			fieldAppEUI:   snap.AppEUI,
			fieldComplete: strconv.FormatBool(snap.Complete),
		})
		pipe.HDel(ctx, key, fieldAppKey)
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrCacheUnavailable, "save credentials", err)
	}
	return nil
}

// Delete 删除节点的凭据
func (c *CredentialCache) Delete(ctx context.Context, deviceKey string) error {
	if err := c.client.Del(ctx, c.key(deviceKey)).Err(); err != nil {
		return errors.Wrap(errors.ErrCacheUnavailable, "delete credentials", err)
	}
	return nil
}
