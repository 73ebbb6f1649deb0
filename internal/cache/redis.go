// Package cache keeps read models in Redis. Every failure degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultPrefix namespaces keys written by this service.
const DefaultPrefix = "roombook:"

// RedisCache stores JSON values with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedisCache wraps client. A ttl <= 0 turns every call into a no-op.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		prefix: DefaultPrefix,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

func (c *RedisCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON decodes the cached value into dst and reports whether it was found.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	if !c.enabled() {
		return false
	}
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(val, dst); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache decode failed")
		return false
	}
	return true
}

// SetJSON stores v under key.
func (c *RedisCache) SetJSON(ctx context.Context, key string, v interface{}) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Delete drops keys.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.prefix+k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// Ping checks the connection for readiness probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
