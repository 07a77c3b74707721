// Package aggregate serves cached read-side views over the device catalog:
// per-device price statistics, trending ranking, locations and per-platform
// breakdowns.
package aggregate

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 60 * time.Second

// Cache is a process-local TTL cache for computed aggregates. Entries are
// never served past their TTL; the ingestion engine additionally invalidates
// affected keys so readers converge faster than the TTL bound.
//
// The clock is injected so expiry is testable without sleeping.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group // dedupe concurrent recomputation per key
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL. A non-positive TTL falls back
// to the default; a nil clock uses time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// GetOrCompute returns the cached value for key, or runs compute and caches
// the result. Concurrent callers for the same missing key share one compute.
func (c *Cache) GetOrCompute(key string, compute func() (interface{}, error)) (interface{}, error) {
	if value, ok := c.get(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have populated the entry while this caller
		// was waiting on the group.
		if value, ok := c.get(key); ok {
			return value, nil
		}

		value, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})
	return value, err
}

func (c *Cache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidatePrefix drops every key with the given prefix. Used for key
// families parameterized by a limit.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live and expired entries still held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
