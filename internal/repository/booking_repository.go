package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/court-reservation/internal/model"
)

// ErrSlotTaken: хотя бы один из слотов уже занят.
var ErrSlotTaken = errors.New("slot already booked")

type BookingRepository interface {
	// Все бронирования на дату.
	ListByDay(ctx context.Context, dateKey string) ([]model.Booking, error)
	// Бронирования участника начиная с даты, с пагинацией.
	ListByUser(ctx context.Context, userID uuid.UUID, fromKey string, limit, offset int) ([]model.Booking, int64, error)
	// Количество бронирований участника в интервале дат [fromKey, toKey].
	CountByUserBetween(ctx context.Context, userID uuid.UUID, fromKey, toKey string) (int64, error)
	// Вставить все слоты одной транзакцией вместе с событием аудита.
	CreateBatch(ctx context.Context, bookings []model.Booking, audit *model.Event) error
	// Удалить бронирование одного слота.
	DeleteSlot(ctx context.Context, court int, dateKey, slotTime string, audit *model.Event) (bool, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) ListByDay(ctx context.Context, dateKey string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("date_key = ?", dateKey).
		Order("court_index ASC, slot_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	fromKey string,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("user_id = ?", userID)
	if fromKey != "" {
		q = q.Where("date_key >= ?", fromKey)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("date_key ASC, slot_time ASC, court_index ASC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) CountByUserBetween(ctx context.Context, userID uuid.UUID, fromKey, toKey string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("user_id = ?", userID).
		Where("date_key >= ? AND date_key <= ?", fromKey, toKey).
		Count(&n).Error
	return n, err
}

func (r *GormBookingRepository) CreateBatch(ctx context.Context, bookings []model.Booking, audit *model.Event) error {
	if len(bookings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first := bookings[0]
		times := make([]string, 0, len(bookings))
		for _, b := range bookings {
			times = append(times, b.SlotTime)
		}

		// Окончательно гонку решает уникальный индекс.
		var taken []string
		if err := lockTakenSlots(tx, first.CourtIndex, first.DateKey, times, &taken).Error; err != nil {
			return err
		}
		if len(taken) > 0 {
			return ErrSlotTaken
		}

		if err := tx.Create(&bookings).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSlotTaken
			}
			return err
		}
		if audit != nil {
			return tx.Create(audit).Error
		}
		return nil
	})
}

// lockTakenSlots выбирает уже занятые слоты из times и держит их строки
// под FOR UPDATE до конца транзакции. Агрегат с FOR UPDATE Postgres не принимает.
func lockTakenSlots(tx *gorm.DB, court int, dateKey string, times []string, taken *[]string) *gorm.DB {
	return tx.Model(&model.Booking{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("court_index = ? AND date_key = ? AND slot_time IN ?", court, dateKey, times).
		Pluck("slot_time", taken)
}

func (r *GormBookingRepository) DeleteSlot(
	ctx context.Context,
	court int,
	dateKey, slotTime string,
	audit *model.Event,
) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("court_index = ? AND date_key = ? AND slot_time = ?", court, dateKey, slotTime).
			Delete(&model.Booking{})
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
