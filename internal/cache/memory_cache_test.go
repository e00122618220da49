package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streampulse/viewership-service/internal/domain"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCountCache()
	ctx := context.Background()

	if _, err := c.Get(ctx, "s1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	snap := domain.CountSnapshot{Count: 7, ComputedAt: time.Now()}
	if err := c.Set(ctx, "s1", snap, 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Count != 7 {
		t.Fatalf("expected count 7, got %d", got.Count)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCountCache()
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "s1", domain.CountSnapshot{Count: 3}, 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(29 * time.Second)
	if _, err := c.Get(ctx, "s1"); err != nil {
		t.Fatalf("entry expired early: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Get(ctx, "s1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after TTL, got %v", err)
	}

	c.Purge()
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	if n != 0 {
		t.Fatalf("purge left %d entries", n)
	}
}
