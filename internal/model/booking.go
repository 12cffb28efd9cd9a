package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// bookings: одна строка на занятый получасовой слот.
// Уникальность (корт, дата, время) держит сама БД.
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CourtIndex int    `gorm:"not null;uniqueIndex:ux_bookings_slot,priority:1"`
	DateKey    string `gorm:"type:varchar(10);not null;uniqueIndex:ux_bookings_slot,priority:2;index"`
	SlotTime   string `gorm:"type:varchar(5);not null;uniqueIndex:ux_bookings_slot,priority:3"`

	UserID   uuid.UUID `gorm:"type:uuid;not null;index"`
	UserName string    `gorm:"type:varchar(255);not null"`
	Player2  string    `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"not null"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
