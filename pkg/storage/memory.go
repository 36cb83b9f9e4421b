package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCache implements Cache in process memory.
// It is safe for concurrent use by multiple goroutines.
//
// If TTL is configured, a background goroutine removes entries older than
// the TTL. Use RedisCache when several dashboard instances share a cache.
type MemoryCache struct {
	mu            sync.RWMutex
	entries       map[string]Entry
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryCache creates a cache whose entries never expire.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
	}
}

// NewMemoryCacheWithTTL creates a cache that drops entries older than ttl.
//
// The cleanup goroutine must be stopped by calling Stop() when the cache
// is no longer needed.
func NewMemoryCacheWithTTL(ttl, cleanupInterval time.Duration) *MemoryCache {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	c := &MemoryCache{
		entries:       make(map[string]Entry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go c.runCleanup()

	return c
}

// Stop shuts down the cleanup goroutine and blocks until it exits.
// Calling Stop multiple times or on a cache without TTL does nothing.
func (c *MemoryCache) Stop() {
	if c.cleanupTicker == nil {
		return
	}

	c.stopMu.Lock()
	defer c.stopMu.Unlock()

	if c.stopped {
		return
	}

	close(c.stopCleanup)
	<-c.cleanupDone
	c.cleanupTicker.Stop()
	c.stopped = true
}

func (c *MemoryCache) runCleanup() {
	defer close(c.cleanupDone)

	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) expired(e Entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.CreatedAt) > c.ttl
}

// Put stores entry, replacing any entry with the same key. A zero CreatedAt
// is set to the current time.
func (c *MemoryCache) Put(ctx context.Context, entry Entry) error {
	if !validKey(entry.Key) {
		return fmt.Errorf("invalid cache key %q", entry.Key)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.Key] = entry
	return nil
}

// Get returns the entry for key. Entries past their TTL are reported as
// missing even before the cleanup goroutine removes them.
func (c *MemoryCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	select {
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	default:
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.entries[key]
	if !found || c.expired(e, time.Now()) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Delete removes the entry for key and reports whether one existed.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[key]
	delete(c.entries, key)
	return existed
}
