package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPageCacheTTL is how long extracted page text is reused.
const DefaultPageCacheTTL = 6 * time.Hour

// TextCache stores extracted page text by URL.
type TextCache interface {
	Get(ctx context.Context, url string) (text string, ok bool, err error)
	Set(ctx context.Context, url, text string) error
}

// RedisTextCache keeps page text in Redis under a hashed URL key with a TTL.
type RedisTextCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTextCache creates a cache. A zero ttl uses DefaultPageCacheTTL.
func NewRedisTextCache(rdb *redis.Client, ttl time.Duration) *RedisTextCache {
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	return &RedisTextCache{rdb: rdb, prefix: "apply:page:", ttl: ttl}
}

func (c *RedisTextCache) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *RedisTextCache) Get(ctx context.Context, url string) (string, bool, error) {
	text, err := c.rdb.Get(ctx, c.key(url)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (c *RedisTextCache) Set(ctx context.Context, url, text string) error {
	return c.rdb.Set(ctx, c.key(url), text, c.ttl).Err()
}
