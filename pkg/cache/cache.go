// Package cache provides a small expiring map. Entries remember when they
// were stored and disappear once they are older than the cache TTL.
package cache

import (
	"sync"
	"time"

	"github.com/korjavin/kitchentimer/pkg/clock"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a concurrency-safe map whose entries expire after a fixed TTL
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	clock   clock.Clock
}

// New creates a cache. A non-positive ttl keeps entries forever and a nil
// clock uses the system clock.
func New[K comparable, V any](ttl time.Duration, c clock.Clock) *Cache[K, V] {
	if c == nil {
		c = clock.Real{}
	}
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		clock:   c,
	}
}

// Set stores value under key, replacing any previous entry. Entries that
// expired and were never read again are dropped on the way.
func (c *Cache[K, V]) Set(key K, value V) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked(now)
	c.entries[key] = entry[V]{value: value, storedAt: now}
}

// Get returns the value for key if present and not expired
func (c *Cache[K, V]) Get(key K) (V, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e, now) {
		c.mu.Lock()
		// Re-check under the write lock; Set may have refreshed it
		if cur, ok := c.entries[key]; ok && c.expired(cur, now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// purgeLocked drops every expired entry and returns how many were removed
func (c *Cache[K, V]) purgeLocked(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[K, V]) expired(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.storedAt) > c.ttl
}
