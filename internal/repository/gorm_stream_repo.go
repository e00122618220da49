package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampulse/viewership-service/internal/domain"
	"github.com/streampulse/viewership-service/pkg/log"
)

// GormStreamRepository implements StreamRepository using GORM.
type GormStreamRepository struct {
	db *gorm.DB
}

// NewGormStreamRepository creates a new GORM-based stream repository.
func NewGormStreamRepository(db *gorm.DB) *GormStreamRepository {
	return &GormStreamRepository{db: db}
}

// Create creates a new stream record.
func (r *GormStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	l := log.Ctx(ctx)

	if stream.ID == "" {
		stream.ID = uuid.New().String()
	}

	model := domain.StreamToModel(stream)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create stream in db")
		return result.Error
	}

	stream.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldStreamID, stream.ID).Msg("stream created in db")
	return nil
}

// GetByID retrieves a stream by ID.
func (r *GormStreamRepository) GetByID(ctx context.Context, streamID string) (*domain.Stream, error) {
	l := log.Ctx(ctx)

	var model domain.StreamModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", streamID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStreamNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Msg("failed to get stream by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// IncrementTotalViews adds one visit to the stream's total view counter
// and returns the new total. A missing record is created so the counter
// survives streams that go live before their metadata is written.
func (r *GormStreamRepository) IncrementTotalViews(ctx context.Context, streamID string) (int64, error) {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.StreamModel{}).
		Where("id = ?", streamID).
		UpdateColumn("total_views", gorm.Expr("total_views + ?", 1))
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Msg("failed to increment total views")
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		model := domain.StreamModel{ID: streamID, TotalViews: 1}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to create stream counter record")
			return 0, err
		}
		return 1, nil
	}

	var model domain.StreamModel
	if err := r.db.WithContext(ctx).Select("total_views").First(&model, "id = ?", streamID).Error; err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to read total views")
		return 0, err
	}
	return model.TotalViews, nil
}
