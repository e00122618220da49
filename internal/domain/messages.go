package domain

import "time"

// Listener actions accepted on POST /listeners.
const (
	ActionJoin      = "join"
	ActionLeave     = "leave"
	ActionHeartbeat = "heartbeat"
)

// Broadcast event type for viewer count updates.
const EventCountUpdate = "count_update"

// UpdateRequest is the POST /listeners body. It arrives either as a
// JSON request or as a sendBeacon text payload with the same shape.
type UpdateRequest struct {
	Action    string `json:"action"`
	StreamID  string `json:"streamId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UpdateResponse is the POST /listeners response.
// TotalViews is only set on join.
type UpdateResponse struct {
	Success       bool   `json:"success"`
	ActiveViewers int    `json:"activeViewers"`
	TotalViews    *int64 `json:"totalViews,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ListenerView is the public shape of a listener entry.
type ListenerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ListenersResponse is the GET /listeners response.
type ListenersResponse struct {
	Success   bool           `json:"success"`
	Listeners []ListenerView `json:"listeners"`
	Count     int            `json:"count"`
	Error     string         `json:"error,omitempty"`
}

// CountUpdatePayload is published to the stream's channel after every
// join, leave, and heartbeat.
type CountUpdatePayload struct {
	StreamID      string    `json:"stream_id"`
	ActiveViewers int       `json:"active_viewers"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToView converts a ListenerEntry to its public shape.
func (e ListenerEntry) ToView() ListenerView {
	return ListenerView{
		ID:        e.UserID,
		Name:      e.DisplayName,
		AvatarURL: e.AvatarURL,
	}
}
