package domain

import (
	"time"
)

// DefaultDisplayName is used when a joining listener gives no name.
const DefaultDisplayName = "Listener"

// ListenerEntry is one user's presence in one stream.
type ListenerEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// StreamPresence maps user ID to listener entry for a single stream.
// It is persisted as one opaque value under one presence-store key, so
// concurrent writers resolve as last-write-wins on the whole map.
type StreamPresence map[string]ListenerEntry

// Sweep drops entries whose last refresh is older than window.
// Returns the number of entries removed.
func (p StreamPresence) Sweep(now time.Time, window time.Duration) int {
	removed := 0
	for id, e := range p {
		if now.Sub(e.LastSeenAt) > window {
			delete(p, id)
			removed++
		}
	}
	return removed
}

// Upsert refreshes the entry for userID, creating it if absent.
// Empty displayName or avatarURL preserve the stored values.
func (p StreamPresence) Upsert(userID, displayName, avatarURL string, now time.Time) {
	e, ok := p[userID]
	if !ok {
		e = ListenerEntry{UserID: userID, DisplayName: DefaultDisplayName}
	}
	if displayName != "" {
		e.DisplayName = displayName
	}
	if avatarURL != "" {
		e.AvatarURL = avatarURL
	}
	e.LastSeenAt = now
	p[userID] = e
}

// Entries returns up to limit entries. Order follows map iteration and
// is not part of the contract.
func (p StreamPresence) Entries(limit int) []ListenerEntry {
	out := make([]ListenerEntry, 0, len(p))
	for _, e := range p {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out
}

// CountSnapshot is a cached viewer count for a stream.
type CountSnapshot struct {
	Count      int       `json:"count"`
	ComputedAt time.Time `json:"computed_at"`
}
