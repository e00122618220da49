package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/streampulse/viewership-service/internal/audit"
	"github.com/streampulse/viewership-service/internal/cache"
	"github.com/streampulse/viewership-service/internal/domain"
	"github.com/streampulse/viewership-service/internal/publisher"
	"github.com/streampulse/viewership-service/internal/repository"
	"github.com/streampulse/viewership-service/internal/store"
	"github.com/streampulse/viewership-service/pkg/log"
)

// Config holds listener registry configuration.
type Config struct {
	// ActiveWindow is how long a presence entry stays active without a
	// refresh. The presence map's store TTL uses the same value.
	ActiveWindow time.Duration
	// CacheTTL bounds the staleness of both count cache tiers.
	CacheTTL time.Duration
	// MaxListeners caps the entries returned by GetActive.
	MaxListeners int
	// ChannelPrefix prefixes broadcast channel names, e.g. "viewers".
	ChannelPrefix string
}

type listenerRegistry struct {
	store   store.TTLStore
	local   cache.CountCache
	shared  cache.CountCache
	counter repository.ViewCounter
	pub     publisher.Publisher
	cfg     Config

	group singleflight.Group
	now   func() time.Time
}

// NewListenerRegistry creates a ListenerRegistry.
func NewListenerRegistry(
	s store.TTLStore,
	local, shared cache.CountCache,
	counter repository.ViewCounter,
	pub publisher.Publisher,
	cfg Config,
) ListenerRegistry {
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 120 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.MaxListeners <= 0 {
		cfg.MaxListeners = 50
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "viewers"
	}
	return &listenerRegistry{
		store:   s,
		local:   local,
		shared:  shared,
		counter: counter,
		pub:     pub,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (r *listenerRegistry) Join(ctx context.Context, streamID, userID, displayName, avatarURL string) (JoinResult, error) {
	now := r.now()

	p := r.loadPresence(ctx, streamID)
	p.Sweep(now, r.cfg.ActiveWindow)
	p.Upsert(userID, displayName, avatarURL, now)
	r.persistPresence(ctx, streamID, p)

	count := len(p)
	r.refreshCaches(ctx, streamID, count)

	res := JoinResult{ActiveViewers: count}
	if total, err := r.counter.IncrementTotalViews(ctx, streamID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to increment total views")
	} else {
		res.TotalViews = total
		res.TotalViewsOK = true
	}

	r.publishCount(ctx, streamID, count)
	audit.Log(ctx, audit.ActionJoin, streamID, userID, "listener joined")

	return res, nil
}

func (r *listenerRegistry) Heartbeat(ctx context.Context, streamID, userID, displayName, avatarURL string) (int, error) {
	now := r.now()

	p := r.loadPresence(ctx, streamID)
	p.Sweep(now, r.cfg.ActiveWindow)
	p.Upsert(userID, displayName, avatarURL, now)
	r.persistPresence(ctx, streamID, p)

	// Heartbeats are frequent; prefer a cached count over the map just
	// swept. The tiers bound the staleness at CacheTTL.
	count, hit := r.cachedCount(ctx, streamID)
	if !hit {
		count = len(p)
		r.refreshCaches(ctx, streamID, count)
	}

	r.publishCount(ctx, streamID, count)

	return count, nil
}

func (r *listenerRegistry) Leave(ctx context.Context, streamID, userID string) (int, error) {
	now := r.now()

	p := r.loadPresence(ctx, streamID)
	delete(p, userID)
	p.Sweep(now, r.cfg.ActiveWindow)
	r.persistPresence(ctx, streamID, p)

	count := len(p)
	r.refreshCaches(ctx, streamID, count)

	r.publishCount(ctx, streamID, count)
	audit.Log(ctx, audit.ActionLeave, streamID, userID, "listener left")

	return count, nil
}

func (r *listenerRegistry) GetActive(ctx context.Context, streamID string) ([]domain.ListenerEntry, int, error) {
	now := r.now()

	p := r.loadPresence(ctx, streamID)
	if removed := p.Sweep(now, r.cfg.ActiveWindow); removed > 0 {
		r.persistPresence(ctx, streamID, p)
	}

	return p.Entries(r.cfg.MaxListeners), len(p), nil
}

func (r *listenerRegistry) ActiveCount(ctx context.Context, streamID string) (int, error) {
	if count, hit := r.cachedCount(ctx, streamID); hit {
		return count, nil
	}

	// Collapse concurrent recounts for the same stream in this process.
	v, _, _ := r.group.Do(streamID, func() (interface{}, error) {
		return r.recount(ctx, streamID), nil
	})
	count := v.(int)

	r.refreshCaches(ctx, streamID, count)
	return count, nil
}

// recount is the authoritative tier: load, sweep, persist if the sweep
// changed anything, count.
func (r *listenerRegistry) recount(ctx context.Context, streamID string) int {
	now := r.now()

	p := r.loadPresence(ctx, streamID)
	if removed := p.Sweep(now, r.cfg.ActiveWindow); removed > 0 {
		r.persistPresence(ctx, streamID, p)
	}
	return len(p)
}

// cachedCount reads tier 0 then tier 1, back-filling tier 0 on a tier 1
// hit. Cache errors count as misses.
func (r *listenerRegistry) cachedCount(ctx context.Context, streamID string) (int, bool) {
	l := log.Ctx(ctx)

	snap, err := r.local.Get(ctx, streamID)
	if err == nil {
		return snap.Count, true
	}

	snap, err = r.shared.Get(ctx, streamID)
	if err == nil {
		if err := r.local.Set(ctx, streamID, snap, r.cfg.CacheTTL); err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to backfill local count cache")
		}
		return snap.Count, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("shared count cache read failed")
	}

	return 0, false
}

// refreshCaches writes a fresh snapshot into both tiers.
func (r *listenerRegistry) refreshCaches(ctx context.Context, streamID string, count int) {
	l := log.Ctx(ctx)
	snap := domain.CountSnapshot{Count: count, ComputedAt: r.now()}

	if err := r.local.Set(ctx, streamID, snap, r.cfg.CacheTTL); err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to refresh local count cache")
	}
	if err := r.shared.Set(ctx, streamID, snap, r.cfg.CacheTTL); err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to refresh shared count cache")
	}
}

// loadPresence reads the stream's presence map. Store failure degrades
// to an empty map; presence is best-effort by contract.
func (r *listenerRegistry) loadPresence(ctx context.Context, streamID string) domain.StreamPresence {
	l := log.Ctx(ctx)

	data, err := r.store.Get(ctx, store.StreamKey(streamID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to load presence map")
		}
		return domain.StreamPresence{}
	}

	var p domain.StreamPresence
	if err := json.Unmarshal(data, &p); err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("corrupt presence map, resetting")
		return domain.StreamPresence{}
	}
	if p == nil {
		p = domain.StreamPresence{}
	}
	return p
}

// persistPresence writes the map back with TTL = ActiveWindow, or
// deletes the key when the map emptied. Failures are logged only.
func (r *listenerRegistry) persistPresence(ctx context.Context, streamID string, p domain.StreamPresence) {
	l := log.Ctx(ctx)
	key := store.StreamKey(streamID)

	if len(p) == 0 {
		if err := r.store.Delete(ctx, key); err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to delete empty presence map")
		}
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to marshal presence map")
		return
	}
	if err := r.store.Put(ctx, key, data, r.cfg.ActiveWindow); err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to persist presence map")
	}
}

// publishCount makes the one broadcast attempt for this operation.
// Delivery failure never reaches the caller.
func (r *listenerRegistry) publishCount(ctx context.Context, streamID string, count int) {
	channel := fmt.Sprintf("%s:%s", r.cfg.ChannelPrefix, streamID)
	payload := domain.CountUpdatePayload{
		StreamID:      streamID,
		ActiveViewers: count,
		UpdatedAt:     r.now(),
	}

	if err := r.pub.Publish(ctx, channel, domain.EventCountUpdate, payload); err != nil {
		l := log.Ctx(ctx)
		l.Error().
			Err(err).
			Str(log.FieldStreamID, streamID).
			Str(log.FieldChannel, channel).
			Int(log.FieldCount, count).
			Msg("failed to publish count update")
	}
}
