// ABOUTME: In-memory TTL cache used to avoid repeated registry and model lookups.
// ABOUTME: Generic over the cached value; expired entries are swept by a context-bound goroutine.

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps string keys to values that expire after a fixed TTL
type Cache[V any] struct {
	items  map[string]entry[V]
	mutex  sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

func New[V any](ttl time.Duration, logger *logrus.Logger) *Cache[V] {
	return &Cache[V]{
		items:  make(map[string]entry[V]),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var zero V
	e, exists := c.items[key]
	if !exists {
		return zero, false
	}

	// Expired entries are left for the sweeper so reads never take the write lock
	if c.now().After(e.expiresAt) {
		return zero, false
	}

	c.logger.WithField("key", key).Debug("Cache hit")
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}

	c.logger.WithField("key", key).Debug("Cached value")
}

// StartCleanup sweeps expired entries every interval until ctx is done
func (c *Cache[V]) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache[V]) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	expiredCount := 0

	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.WithFields(logrus.Fields{
			"expired_entries":   expiredCount,
			"remaining_entries": len(c.items),
		}).Debug("Cache cleanup completed")
	}
}

func (c *Cache[V]) Stats() (total int, expired int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	total = len(c.items)

	for _, e := range c.items {
		if now.After(e.expiresAt) {
			expired++
		}
	}

	return total, expired
}
