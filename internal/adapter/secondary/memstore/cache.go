package memstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// Cache implements secondary.Cache in process memory.
type Cache struct {
	items *ttlcache.Cache[string, []byte]
}

var _ secondary.Cache = (*Cache)(nil)

// NewCache creates a cache whose entries default to ttl and starts its
// expiry loop. Call Stop to end it.
func NewCache(ttl time.Duration) *Cache {
	items := ttlcache.New(
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &Cache{items: items}
}

// Get returns the value for key or secondary.ErrCacheMiss.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, secondary.ErrCacheMiss
	}
	return item.Value(), nil
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Stop ends the expiry loop.
func (c *Cache) Stop() {
	c.items.Stop()
}
