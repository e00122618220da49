package domain

import (
	"testing"
	"time"
)

func TestUpsertCreatesAndRefreshes(t *testing.T) {
	p := StreamPresence{}
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	p.Upsert("alice", "Alice", "https://cdn/a.png", t0)
	if len(p) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(p))
	}

	e := p["alice"]
	if e.DisplayName != "Alice" || e.AvatarURL != "https://cdn/a.png" {
		t.Fatalf("unexpected entry: %+v", e)
	}

	// Rejoin without metadata keeps the stored values.
	t1 := t0.Add(10 * time.Second)
	p.Upsert("alice", "", "", t1)
	if len(p) != 1 {
		t.Fatalf("upsert must not duplicate, got %d entries", len(p))
	}
	e = p["alice"]
	if e.DisplayName != "Alice" || e.AvatarURL != "https://cdn/a.png" {
		t.Fatalf("metadata not preserved: %+v", e)
	}
	if !e.LastSeenAt.Equal(t1) {
		t.Fatalf("last seen not refreshed: %v", e.LastSeenAt)
	}
}

func TestUpsertDefaultDisplayName(t *testing.T) {
	p := StreamPresence{}
	p.Upsert("anon", "", "", time.Now())

	if got := p["anon"].DisplayName; got != DefaultDisplayName {
		t.Fatalf("expected placeholder name, got %q", got)
	}
}

func TestSweepDropsStaleEntries(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	window := 120 * time.Second

	p := StreamPresence{}
	p.Upsert("fresh", "", "", t0.Add(-30*time.Second))
	p.Upsert("edge", "", "", t0.Add(-window))
	p.Upsert("stale", "", "", t0.Add(-window-time.Second))

	removed := p.Sweep(t0, window)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := p["stale"]; ok {
		t.Fatalf("stale entry survived sweep")
	}
	// Exactly at the window boundary is still active.
	if _, ok := p["edge"]; !ok {
		t.Fatalf("boundary entry was swept")
	}
	if _, ok := p["fresh"]; !ok {
		t.Fatalf("fresh entry was swept")
	}
}

func TestEntriesLimit(t *testing.T) {
	p := StreamPresence{}
	now := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		p.Upsert(id, "", "", now)
	}

	if got := p.Entries(2); len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got := p.Entries(50); len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
}
