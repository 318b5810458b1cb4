package tle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "passbot:tle:"

// RedisCache stores the latest download per source in a Redis hash that
// expires after ttl. Useful when several passbot processes share one cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Put overwrites the stored copy for source.
func (c *RedisCache) Put(ctx context.Context, source string, data []byte, ts time.Time) error {
	key := redisKeyPrefix + sourceKey(source)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "fetched_at", ts.Unix(), "source", source)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Latest returns the stored copy for source or ErrCacheMiss.
func (c *RedisCache) Latest(ctx context.Context, source string) ([]byte, time.Time, error) {
	key := redisKeyPrefix + sourceKey(source)
	vals, err := c.client.HMGet(ctx, key, "data", "fetched_at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, ErrCacheMiss
		}
		return nil, time.Time{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, time.Time{}, ErrCacheMiss
	}
	tsStr, _ := vals[1].(string)
	unix, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get %s: bad fetched_at %q", key, tsStr)
	}
	return []byte(data), time.Unix(unix, 0), nil
}
