package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех таблиц сервиса бронирования кортов.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&WeeklyBlock{},
		&Booking{},
		&Setting{},
		&Event{},
	)
}
