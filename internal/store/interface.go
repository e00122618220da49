package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// TTLStore is durable-enough key/value storage with per-key expiry,
// shared across all service instances. A value written with a TTL
// becomes unavailable roughly that long after the last Put; expiry
// timing is approximate.
type TTLStore interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes value under key with the given TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close closes the store connection.
	Close() error
}

// StreamKey is the presence-store key holding a stream's presence map.
func StreamKey(streamID string) string {
	return fmt.Sprintf("presence:stream:%s", streamID)
}
