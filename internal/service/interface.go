package service

import (
	"context"

	"github.com/streampulse/viewership-service/internal/domain"
)

// JoinResult is the outcome of a join operation.
type JoinResult struct {
	// ActiveViewers is the post-join active count for the stream.
	ActiveViewers int
	// TotalViews is the new durable visit total. Only valid when
	// TotalViewsOK is true; the counter update is best-effort.
	TotalViews   int64
	TotalViewsOK bool
}

// ListenerRegistry is the authoritative in-window view of who is
// watching each stream. All operations sweep expired entries lazily,
// tolerate infrastructure failure by degrading to empty data, and
// trigger exactly one broadcast attempt per call.
type ListenerRegistry interface {
	// Join adds or refreshes the user's presence and counts the visit.
	// Idempotent for presence: joining twice yields one entry.
	Join(ctx context.Context, streamID, userID, displayName, avatarURL string) (JoinResult, error)

	// Heartbeat refreshes the user's presence. It never touches the
	// total view counter and prefers cached counts over recounting.
	Heartbeat(ctx context.Context, streamID, userID, displayName, avatarURL string) (int, error)

	// Leave removes the user's presence and returns the new count.
	Leave(ctx context.Context, streamID, userID string) (int, error)

	// GetActive returns the remaining in-window entries (bounded) and
	// the full active count.
	GetActive(ctx context.Context, streamID string) ([]domain.ListenerEntry, int, error)

	// ActiveCount returns the active viewer count, cache-through.
	ActiveCount(ctx context.Context, streamID string) (int, error)
}
