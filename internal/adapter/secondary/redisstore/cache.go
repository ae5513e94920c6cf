package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

const keyPrefix = "alma-item-checks:"

// Cache implements secondary.Cache on Redis string keys.
type Cache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ secondary.Cache = (*Cache)(nil)

// NewCache creates a Redis-backed cache.
func NewCache(client redis.UniversalClient, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger.Named("redis-cache")}
}

// Get returns the value for key or secondary.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, secondary.ErrCacheMiss
		}
		return nil, fmt.Errorf("reading %q from redis: %w", key, err)
	}
	return data, nil
}

// Set stores value under key for ttl. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing %q to redis: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("deleting %q from redis: %w", key, err)
	}
	return nil
}
