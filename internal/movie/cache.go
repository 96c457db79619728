package movie

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheKeyPrefix はRedis上の映画情報キャッシュのキー接頭辞。
const cacheKeyPrefix = "moviefav:movie:"

// Cache は映画APIレスポンスのキャッシュ。
// Getはキーが存在しない場合に(nil, false, nil)を返す。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RedisCache はRedisを使用したCache実装。
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache はRedisCacheを生成する。
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get はキャッシュ済みのレスポンスを取得する。
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache %s: %w", key, err)
	}
	return val, true, nil
}

// Set はレスポンスをTTL付きで保存する。
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache %s: %w", key, err)
	}
	return nil
}

// cacheKey は問い合わせ種別と引数からキャッシュキーを組み立てる。
func cacheKey(kind Kind, arg string) string {
	return cacheKeyPrefix + string(kind) + ":" + arg
}

var _ Cache = (*RedisCache)(nil)
