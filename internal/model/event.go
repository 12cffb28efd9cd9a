package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeBookingCreated      EventType = "booking_created"
	EventTypeBookingDeleted      EventType = "booking_deleted"
	EventTypeRuleAdded           EventType = "rule_added"
	EventTypeRuleDeleted         EventType = "rule_deleted"
	EventTypeQuotaChanged        EventType = "quota_changed"
	EventTypeManualBlockToggled  EventType = "manual_block_toggled"
	EventTypeMemberStatusChanged EventType = "member_status_changed"
)

// events: события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	// Кто совершил действие.
	UserID *uuid.UUID `gorm:"type:uuid;index"`

	// Подробности в JSON (jsonb в Postgres).
	Details datatypes.JSON
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
