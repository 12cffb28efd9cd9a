package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/court-reservation/internal/model"
)

type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	// Последние события аудита, новые первыми.
	ListRecent(ctx context.Context, eventType model.EventType, limit, offset int) ([]model.Event, int64, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormEventRepository) ListRecent(
	ctx context.Context,
	eventType model.EventType,
	limit, offset int,
) ([]model.Event, int64, error) {
	var (
		events []model.Event
		total  int64
	)
	q := r.db.WithContext(ctx).Model(&model.Event{})
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
