package calendar

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxHoursPerDay = 2.0
	MinMaxHoursPerDay     = 0.5
	MaxMaxHoursPerDay     = 8.0
	MaxHoursStep          = 0.5
)

var (
	minCap  = decimal.NewFromFloat(MinMaxHoursPerDay)
	maxCap  = decimal.NewFromFloat(MaxMaxHoursPerDay)
	capStep = decimal.NewFromFloat(MaxHoursStep)
)

// ClampMaxHours округляет h до шага редактора и держит в границах.
// NaN и бесконечность дают значение по умолчанию.
func ClampMaxHours(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return DefaultMaxHoursPerDay
	}
	d := decimal.NewFromFloat(h).Div(capStep).Round(0).Mul(capStep)
	if d.LessThan(minCap) {
		d = minCap
	}
	if d.GreaterThan(maxCap) {
		d = maxCap
	}
	f, _ := d.Float64()
	return f
}

// AdjustMaxHours применяет шаг редактора (+0.5 / -0.5) к current.
func AdjustMaxHours(current, delta float64) float64 {
	sum := decimal.NewFromFloat(current).Add(decimal.NewFromFloat(delta))
	f, _ := sum.Float64()
	return ClampMaxHours(f)
}

// QuotaTracker считает часы участников за один день.
type QuotaTracker struct {
	ledger *Ledger
}

func NewQuotaTracker(l *Ledger) QuotaTracker {
	return QuotaTracker{ledger: l}
}

// HoursBooked: число слотов участника, умноженное на длину слота.
func (q QuotaTracker) HoursBooked(userID string) float64 {
	n := 0
	for _, b := range q.ledger.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return slotsToHours(n)
}

// WouldExceed: ещё n слотов выведут участника за лимит.
func (q QuotaTracker) WouldExceed(userID string, n int, limit float64) bool {
	booked := decimal.NewFromFloat(q.HoursBooked(userID))
	after := booked.Add(decimal.NewFromFloat(slotsToHours(n)))
	return after.GreaterThan(decimal.NewFromFloat(limit))
}

// Check возвращает *QuotaError, если участнику нельзя взять ещё n слотов.
// Админы не ограничены.
func (q QuotaTracker) Check(actor Actor, n int, limit float64) error {
	if actor.IsAdmin || !q.WouldExceed(actor.UserID, n, limit) {
		return nil
	}
	return &QuotaError{
		Cap:       limit,
		Booked:    q.HoursBooked(actor.UserID),
		Requested: slotsToHours(n),
	}
}

func slotsToHours(n int) float64 {
	f, _ := decimal.NewFromInt(int64(n)).Mul(decimal.NewFromFloat(SlotHours)).Float64()
	return f
}
