package model

import "time"

const SettingMaxHoursPerDay = "max_hours_per_day"

// settings: скалярные настройки клуба.
type Setting struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
