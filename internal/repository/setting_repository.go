package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/court-reservation/internal/model"
)

type SettingRepository interface {
	// Get возвращает значение и признак наличия.
	Get(ctx context.Context, name string) (string, bool, error)
	Upsert(ctx context.Context, name, value string, audit *model.Event) error
}

type GormSettingRepository struct {
	db *gorm.DB
}

func NewGormSettingRepository(db *gorm.DB) *GormSettingRepository {
	return &GormSettingRepository{db: db}
}

func (r *GormSettingRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var s model.Setting
	err := r.db.WithContext(ctx).First(&s, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *GormSettingRepository) Upsert(ctx context.Context, name, value string, audit *model.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := model.Setting{Name: name, Value: value}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&s).Error
		if err != nil {
			return err
		}
		if audit != nil {
			return tx.Create(audit).Error
		}
		return nil
	})
}
