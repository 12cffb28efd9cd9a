package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус участника клуба.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusBlocked  UserStatus = "blocked"
)

// users: участники клуба
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Имя видно в сетке бронирований, поэтому уникально.
	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`

	Status  UserStatus `gorm:"type:varchar(16);not null;default:'pending';index"`
	IsAdmin bool       `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
