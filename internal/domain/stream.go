package domain

import (
	"time"

	"github.com/streampulse/viewership-service/pkg/database"
)

// Stream is the metadata record for a live stream.
type Stream struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	BroadcasterID   string    `json:"broadcaster_id"`
	BroadcasterName string    `json:"broadcaster_name"`
	Tags            []string  `json:"tags,omitempty"`
	TotalViews      int64     `json:"total_views"`
	CreatedAt       time.Time `json:"created_at"`
}

// StreamModel is the GORM persistence model for Stream.
type StreamModel struct {
	ID              string               `gorm:"primaryKey;size:64"`
	Title           string               `gorm:"size:200"`
	BroadcasterID   string               `gorm:"size:64;index"`
	BroadcasterName string               `gorm:"size:100"`
	Tags            database.StringArray `gorm:"type:text"`
	TotalViews      int64                `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName sets the table name for GORM.
func (StreamModel) TableName() string {
	return "streams"
}

// ToDomain converts the persistence model to the domain object.
func (m *StreamModel) ToDomain() *Stream {
	return &Stream{
		ID:              m.ID,
		Title:           m.Title,
		BroadcasterID:   m.BroadcasterID,
		BroadcasterName: m.BroadcasterName,
		Tags:            m.Tags,
		TotalViews:      m.TotalViews,
		CreatedAt:       m.CreatedAt,
	}
}

// StreamToModel converts the domain object to the persistence model.
func StreamToModel(s *Stream) *StreamModel {
	return &StreamModel{
		ID:              s.ID,
		Title:           s.Title,
		BroadcasterID:   s.BroadcasterID,
		BroadcasterName: s.BroadcasterName,
		Tags:            s.Tags,
		TotalViews:      s.TotalViews,
		CreatedAt:       s.CreatedAt,
	}
}
