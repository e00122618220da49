package cache

import (
	"context"
	"sync"
	"time"

	"github.com/streampulse/viewership-service/internal/domain"
)

type memoryEntry struct {
	snap      domain.CountSnapshot
	expiresAt time.Time
}

// MemoryCountCache is the process-local count cache. Its contents live
// for the lifetime of one instance and are never assumed durable.
type MemoryCountCache struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryCountCache creates an empty in-process count cache.
func NewMemoryCountCache() *MemoryCountCache {
	return &MemoryCountCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCountCache) Get(ctx context.Context, streamID string) (domain.CountSnapshot, error) {
	c.mu.RLock()
	e, ok := c.entries[streamID]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		return domain.CountSnapshot{}, ErrCacheMiss
	}
	return e.snap, nil
}

func (c *MemoryCountCache) Set(ctx context.Context, streamID string, snap domain.CountSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[streamID] = memoryEntry{
		snap:      snap,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Purge drops expired entries. Callers may run it periodically; Get
// treats expired entries as misses either way.
func (c *MemoryCountCache) Purge() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}

func (c *MemoryCountCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}
