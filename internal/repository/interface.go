package repository

import (
	"context"
	"errors"

	"github.com/streampulse/viewership-service/internal/domain"
)

// ErrStreamNotFound is returned when no stream record exists.
var ErrStreamNotFound = errors.New("stream not found")

// ViewCounter increments the durable per-stream total view counter.
// The counter is monotonically non-decreasing and counts visits, not
// currently present users; it is never reset by presence expiry.
type ViewCounter interface {
	IncrementTotalViews(ctx context.Context, streamID string) (int64, error)
}

// StreamRepository provides access to stream metadata in the system of
// record.
type StreamRepository interface {
	ViewCounter

	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, streamID string) (*domain.Stream, error)
}
