// Package cache provides the in-memory TTL cache used to deduplicate
// webhook deliveries by message id.
package cache

import (
	"sync"
	"time"
)

// Cache maps string keys to expiry timestamps. Reads are self-healing: a
// Get that finds an expired entry removes it under the same lock, so
// correctness never depends on the background sweep. The sweep only bounds
// memory for keys that are set and never read again.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	done    chan struct{}
	closed  bool
}

// New creates an empty cache. Callers that want periodic cleanup start
// Sweep in their own goroutine.
func New() *Cache {
	return &Cache{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
}

// Get returns the stored expiry for key if it has not passed. An expired
// or absent key is a miss; an expired entry is removed on the spot. The
// lock is taken exclusively because the read can mutate.
func (c *Cache) Get(key string) (time.Time, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return expiry, true
	}
	delete(c.entries, key)
	return time.Time{}, false
}

// Set stores observed+ttl as the expiry for key, unconditionally
// overwriting any prior entry. Callers needing set-once semantics must
// serialize around it themselves.
func (c *Cache) Set(key string, observed time.Time, ttl time.Duration) {
	expiry := observed.Add(ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = expiry
}

// Delete removes key. No-op if absent. The steady-state pipeline never
// deletes; this exists for tests and administrative use.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of physically stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries once per ttl until Close is called.
func (c *Cache) Sweep(ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, key)
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
