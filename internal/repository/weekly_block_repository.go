package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/court-reservation/internal/model"
)

type WeeklyBlockRepository interface {
	// Все правила в порядке приоритета: корт, затем время создания.
	List(ctx context.Context) ([]model.WeeklyBlock, error)
	// Вставить правила (по одному на корт) одной транзакцией.
	CreateBatch(ctx context.Context, rules []model.WeeklyBlock, audit *model.Event) error
	// Удалить правило.
	Delete(ctx context.Context, id string, audit *model.Event) (bool, error)
}

type GormWeeklyBlockRepository struct {
	db *gorm.DB
}

func NewGormWeeklyBlockRepository(db *gorm.DB) *GormWeeklyBlockRepository {
	return &GormWeeklyBlockRepository{db: db}
}

func (r *GormWeeklyBlockRepository) List(ctx context.Context) ([]model.WeeklyBlock, error) {
	var rules []model.WeeklyBlock
	err := r.db.WithContext(ctx).
		Order("court_index ASC, created_at ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormWeeklyBlockRepository) CreateBatch(ctx context.Context, rules []model.WeeklyBlock, audit *model.Event) error {
	if len(rules) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rules).Error; err != nil {
			return err
		}
		if audit != nil {
			return tx.Create(audit).Error
		}
		return nil
	})
}

func (r *GormWeeklyBlockRepository) Delete(ctx context.Context, id string, audit *model.Event) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.WeeklyBlock{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		if deleted && audit != nil {
			return tx.Create(audit).Error
		}
		return nil
	})
	return deleted, err
}
