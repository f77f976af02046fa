// Package cache holds a small in-process TTL cache for dashboard
// reads. Entries past their TTL stay retrievable as stale values so
// read endpoints can degrade gracefully when the database is down.
package cache

import (
	"sync"
	"time"

	"horse.fit/pulse/internal/globaltime"
)

const defaultMaxEntries = 256

type entry struct {
	value    any
	storedAt time.Time
}

type TTL struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]entry
}

func New(ttl time.Duration, maxEntries int) *TTL {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &TTL{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
	}
}

// Get returns the cached value for key. fresh reports whether the
// entry is still within its TTL; a stale entry is returned with
// fresh=false rather than dropped.
func (c *TTL) Get(key string) (value any, fresh, ok bool) {
	if c == nil {
		return nil, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return e.value, globaltime.Since(e.storedAt) <= c.ttl, true
}

// Set stores value under key, evicting the oldest entry when the cache
// is full.
func (c *TTL) Set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{value: value, storedAt: globaltime.UTC()}
}

// Invalidate drops key if present.
func (c *TTL) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TTL) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
