package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streampulse/viewership-service/internal/cache"
	"github.com/streampulse/viewership-service/internal/domain"
	"github.com/streampulse/viewership-service/internal/store"
)

// fakeStore is an in-memory TTLStore. TTL is recorded but not enforced;
// expiry is exercised through the registry's sweep with a fake clock.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failAll bool
	puts    int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("store unavailable")
	}
	v, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store unavailable")
	}
	s.data[key] = value
	s.puts++
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store unavailable")
	}
	delete(s.data, key)
	s.deletes++
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// fakeCache is a CountCache that never expires entries on its own.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]domain.CountSnapshot
	fail bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]domain.CountSnapshot)}
}

func (c *fakeCache) Get(ctx context.Context, streamID string) (domain.CountSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return domain.CountSnapshot{}, errors.New("cache unavailable")
	}
	snap, ok := c.data[streamID]
	if !ok {
		return domain.CountSnapshot{}, cache.ErrCacheMiss
	}
	return snap, nil
}

func (c *fakeCache) Set(ctx context.Context, streamID string, snap domain.CountSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache unavailable")
	}
	c.data[streamID] = snap
	return nil
}

func (c *fakeCache) Close() error { return nil }

func (c *fakeCache) drop(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, streamID)
}

func (c *fakeCache) put(streamID string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[streamID] = domain.CountSnapshot{Count: count}
}

// fakeCounter increments totals in memory.
type fakeCounter struct {
	mu     sync.Mutex
	totals map[string]int64
	fail   bool
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{totals: make(map[string]int64)}
}

func (c *fakeCounter) IncrementTotalViews(ctx context.Context, streamID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, errors.New("db unavailable")
	}
	c.totals[streamID]++
	return c.totals[streamID], nil
}

func (c *fakeCounter) total(streamID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[streamID]
}

// fakePublisher records publish attempts.
type fakePublisher struct {
	mu       sync.Mutex
	attempts []string
	fail     bool
}

func (p *fakePublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, channel)
	if p.fail {
		return errors.New("push unavailable")
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attempts)
}

type registryFixture struct {
	reg     *listenerRegistry
	store   *fakeStore
	local   *fakeCache
	shared  *fakeCache
	counter *fakeCounter
	pub     *fakePublisher
	clock   *time.Time
}

func newFixture(t *testing.T) *registryFixture {
	t.Helper()

	fs := newFakeStore()
	local := newFakeCache()
	shared := newFakeCache()
	counter := newFakeCounter()
	pub := &fakePublisher{}

	reg := NewListenerRegistry(fs, local, shared, counter, pub, Config{
		ActiveWindow: 120 * time.Second,
		CacheTTL:     30 * time.Second,
		MaxListeners: 50,
	}).(*listenerRegistry)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	reg.now = func() time.Time { return *clock }

	return &registryFixture{
		reg: reg, store: fs, local: local, shared: shared,
		counter: counter, pub: pub, clock: clock,
	}
}

func (f *registryFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func hasUser(entries []domain.ListenerEntry, userID string) int {
	n := 0
	for _, e := range entries {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

func TestJoinThenGetActiveIncludesUserOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reg.Join(ctx, "s1", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.ActiveViewers != 1 {
		t.Fatalf("expected count 1, got %d", res.ActiveViewers)
	}

	entries, count, err := f.reg.GetActive(ctx, "s1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if count != 1 || hasUser(entries, "alice") != 1 {
		t.Fatalf("expected exactly one alice, count=%d entries=%+v", count, entries)
	}
}

func TestLeaveExcludesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	f.reg.Join(ctx, "s1", "bob", "Bob", "")

	count, err := f.reg.Leave(ctx, "s1", "alice")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1 after leave, got %d", count)
	}

	entries, _, _ := f.reg.GetActive(ctx, "s1")
	if hasUser(entries, "alice") != 0 {
		t.Fatalf("alice still present after leave")
	}
}

func TestScenarioJoinHeartbeatLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.reg.Join(ctx, "s1", "alice", "Alice", "")
	if res.ActiveViewers != 1 || !res.TotalViewsOK || res.TotalViews != 1 {
		t.Fatalf("after join(alice): %+v", res)
	}

	res, _ = f.reg.Join(ctx, "s1", "bob", "Bob", "")
	if res.ActiveViewers != 2 || res.TotalViews != 2 {
		t.Fatalf("after join(bob): %+v", res)
	}

	count, _ := f.reg.Heartbeat(ctx, "s1", "alice", "", "")
	if count != 2 {
		t.Fatalf("heartbeat count = %d, want 2", count)
	}
	if got := f.counter.total("s1"); got != 2 {
		t.Fatalf("heartbeat changed total views: %d", got)
	}

	count, _ = f.reg.Leave(ctx, "s1", "bob")
	if count != 1 {
		t.Fatalf("leave count = %d, want 1", count)
	}
	if got := f.counter.total("s1"); got != 2 {
		t.Fatalf("leave changed total views: %d", got)
	}
}

func TestRejoinIsIdempotentForPresenceNotForTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	res, _ := f.reg.Join(ctx, "s1", "alice", "Alice", "")

	if res.ActiveViewers != 1 {
		t.Fatalf("rejoin duplicated presence: count=%d", res.ActiveViewers)
	}
	if res.TotalViews != 2 {
		t.Fatalf("rejoin must count a visit: total=%d", res.TotalViews)
	}
}

func TestHeartbeatIdempotentCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	for i := 0; i < 5; i++ {
		f.advance(10 * time.Second)
		count, err := f.reg.Heartbeat(ctx, "s1", "alice", "", "")
		if err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}
		if count != 1 {
			t.Fatalf("heartbeat %d changed count to %d", i, count)
		}
	}
}

func TestExpiryAfterActiveWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "carol", "Carol", "")

	f.advance(121 * time.Second)

	entries, count, _ := f.reg.GetActive(ctx, "s1")
	if count != 0 || hasUser(entries, "carol") != 0 {
		t.Fatalf("carol not expired: count=%d entries=%+v", count, entries)
	}
}

func TestHeartbeatKeepsEntryAlivePastWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")

	// Refresh every 60s for 10 minutes; the entry must survive.
	for i := 0; i < 10; i++ {
		f.advance(60 * time.Second)
		f.reg.Heartbeat(ctx, "s1", "alice", "", "")
	}

	_, count, _ := f.reg.GetActive(ctx, "s1")
	if count != 1 {
		t.Fatalf("refreshed entry expired, count=%d", count)
	}
}

func TestEmptyMapIsDeletedNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	key := store.StreamKey("s1")
	if !f.store.has(key) {
		t.Fatalf("presence map not persisted after join")
	}

	f.reg.Leave(ctx, "s1", "alice")
	if f.store.has(key) {
		t.Fatalf("empty presence map persisted instead of deleted")
	}
}

func TestHeartbeatPrefersCachedCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")

	// A stale tier-0 value wins over recounting on heartbeat.
	f.local.put("s1", 99)
	count, _ := f.reg.Heartbeat(ctx, "s1", "alice", "", "")
	if count != 99 {
		t.Fatalf("heartbeat ignored tier-0 cache: %d", count)
	}

	// Tier-1 is consulted when tier-0 misses, and backfills tier-0.
	f.local.drop("s1")
	f.shared.put("s1", 42)
	count, _ = f.reg.Heartbeat(ctx, "s1", "alice", "", "")
	if count != 42 {
		t.Fatalf("heartbeat ignored tier-1 cache: %d", count)
	}
	if snap, err := f.local.Get(ctx, "s1"); err != nil || snap.Count != 42 {
		t.Fatalf("tier-0 not backfilled: %v %v", snap, err)
	}

	// Join recounts and overwrites both tiers.
	f.reg.Join(ctx, "s1", "bob", "Bob", "")
	if snap, _ := f.local.Get(ctx, "s1"); snap.Count != 2 {
		t.Fatalf("join did not refresh tier-0: %d", snap.Count)
	}
	if snap, _ := f.shared.Get(ctx, "s1"); snap.Count != 2 {
		t.Fatalf("join did not refresh tier-1: %d", snap.Count)
	}
}

func TestHeartbeatRepopulatesCachesOnFullMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	f.local.drop("s1")
	f.shared.drop("s1")

	count, _ := f.reg.Heartbeat(ctx, "s1", "alice", "", "")
	if count != 1 {
		t.Fatalf("full-miss heartbeat count = %d", count)
	}
	if snap, err := f.shared.Get(ctx, "s1"); err != nil || snap.Count != 1 {
		t.Fatalf("tier-1 not repopulated: %v %v", snap, err)
	}
}

func TestActiveCountSweepsThroughTierTwo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	f.local.drop("s1")
	f.shared.drop("s1")

	f.advance(121 * time.Second)

	count, err := f.reg.ActiveCount(ctx, "s1")
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after expiry, got %d", count)
	}
}

func TestEveryOperationPublishesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.Join(ctx, "s1", "alice", "Alice", "")
	f.reg.Heartbeat(ctx, "s1", "alice", "", "")
	f.reg.Leave(ctx, "s1", "alice")

	if got := f.pub.count(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	for _, ch := range f.pub.attempts {
		if ch != "viewers:s1" {
			t.Fatalf("unexpected channel %q", ch)
		}
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.fail = true
	ctx := context.Background()

	res, err := f.reg.Join(ctx, "s1", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("join failed on publish error: %v", err)
	}
	if res.ActiveViewers != 1 {
		t.Fatalf("unexpected count %d", res.ActiveViewers)
	}
}

func TestCounterFailureDoesNotFailJoin(t *testing.T) {
	f := newFixture(t)
	f.counter.fail = true
	ctx := context.Background()

	res, err := f.reg.Join(ctx, "s1", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("join failed on counter error: %v", err)
	}
	if res.TotalViewsOK {
		t.Fatalf("TotalViewsOK set despite counter failure")
	}
	if res.ActiveViewers != 1 {
		t.Fatalf("unexpected count %d", res.ActiveViewers)
	}
}

func TestStoreOutageDegradesToEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.failAll = true
	ctx := context.Background()

	res, err := f.reg.Join(ctx, "s1", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("join surfaced store outage: %v", err)
	}
	if res.ActiveViewers != 1 {
		t.Fatalf("join should still count the caller, got %d", res.ActiveViewers)
	}

	count, err := f.reg.Leave(ctx, "s1", "alice")
	if err != nil {
		t.Fatalf("leave surfaced store outage: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 on degraded leave, got %d", count)
	}
}
