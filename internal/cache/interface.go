package cache

import (
	"context"
	"errors"
	"time"

	"github.com/streampulse/viewership-service/internal/domain"
)

// ErrCacheMiss is returned when a stream has no fresh cached count.
var ErrCacheMiss = errors.New("cache miss")

// CountCache stores per-stream viewer count snapshots with a short TTL.
// Tier 0 is process-local, tier 1 is shared through Redis; both expose
// the same interface so the registry can be tested with fakes.
type CountCache interface {
	Get(ctx context.Context, streamID string) (domain.CountSnapshot, error)
	Set(ctx context.Context, streamID string, snap domain.CountSnapshot, ttl time.Duration) error
	Close() error
}
