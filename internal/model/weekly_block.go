package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// weekly_blocks: повторяющиеся по дню недели закрытия корта.
// Порядок строк (корт, затем время создания) задаёт приоритет правил.
type WeeklyBlock struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CourtIndex int `gorm:"not null;index"`
	// 0 = воскресенье … 6 = суббота
	Weekday int `gorm:"not null"`

	FromTime string `gorm:"type:varchar(5);not null"`
	ToTime   string `gorm:"type:varchar(5);not null"`
	Reason   string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"not null;index"`
}

func (w *WeeklyBlock) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
