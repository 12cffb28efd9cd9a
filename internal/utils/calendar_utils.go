package utils

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
	ErrInvalidClock     = errors.New("invalid clock time")
)

// TimeRange представляет временной интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange создаёт интервал; End обязан быть строго позже Start.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// Duration возвращает длительность интервала.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// ClockOffset разбирает время суток в формате "HH:MM" (строго две цифры на часы и минуты)
// и возвращает смещение от полуночи.
func ClockOffset(s string) (time.Duration, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// FormatClock форматирует момент как "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// ClockRange строит интервал [from, to) внутри дня day.
func ClockRange(day time.Time, from, to string) (TimeRange, error) {
	fromOff, err := ClockOffset(from)
	if err != nil {
		return TimeRange{}, err
	}
	toOff, err := ClockOffset(to)
	if err != nil {
		return TimeRange{}, err
	}
	base := DateOnly(day)
	return NewTimeRange(base.Add(fromOff), base.Add(toOff))
}

// SplitToTimeSlots разбивает интервал на слоты фиксированной длительности.
// alignMinutes > 0: выравнивание начала по ближайшей отметке, кратной alignMinutes.
// "Хвост" меньшей длительности, чем slotDuration, отбрасывается.
func SplitToTimeSlots(
	tr TimeRange,
	slotDuration time.Duration,
	alignMinutes int,
) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	start := tr.Start

	if alignMinutes > 0 {
		min := start.Minute()
		rem := min % alignMinutes
		if rem != 0 {
			start = time.Date(
				start.Year(),
				start.Month(),
				start.Day(),
				start.Hour(),
				min+alignMinutes-rem,
				0, 0,
				start.Location(),
			)
			if !start.Before(tr.End) {
				return []TimeRange{}, nil
			}
		}
	}

	var slots []TimeRange
	for cur := start; ; cur = cur.Add(slotDuration) {
		slotEnd := cur.Add(slotDuration)
		if slotEnd.After(tr.End) {
			break
		}
		slots = append(slots, TimeRange{Start: cur, End: slotEnd})
	}

	return slots, nil
}

// HasOverlap проверяет, пересекается ли newRange с existing.
// inclusive = true: касание концами считается пересечением.
func HasOverlap(
	newRange TimeRange,
	existing []TimeRange,
	inclusive bool,
) (bool, []TimeRange) {
	var conflicts []TimeRange

	for _, tr := range existing {
		if rangesOverlap(newRange, tr, inclusive) {
			conflicts = append(conflicts, tr)
		}
	}

	return len(conflicts) > 0, conflicts
}

func rangesOverlap(a, b TimeRange, inclusive bool) bool {
	if inclusive {
		return !a.Start.After(b.End) && !b.Start.After(a.End)
	}

	// Полуоткрытые интервалы [Start, End)
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// DateOnly отбрасывает время суток.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// ===== Форматирование слота для пользователя =====

// Короткие названия дней недели, как их показывает клубное приложение.
var deWeekdays = map[time.Weekday]string{
	time.Monday:    "Mo",
	time.Tuesday:   "Di",
	time.Wednesday: "Mi",
	time.Thursday:  "Do",
	time.Friday:    "Fr",
	time.Saturday:  "Sa",
	time.Sunday:    "So",
}

// WeekdayShort возвращает короткое название дня недели.
func WeekdayShort(w time.Weekday) string {
	return deWeekdays[w]
}

// FormatSlotForUser форматирует интервал в человекочитаемую строку.
// Если loc != nil, время переводится в указанный часовой пояс.
// Непустой label (например, название корта) добавляется в скобках.
func FormatSlotForUser(tr TimeRange, loc *time.Location, label string) string {
	start := tr.Start
	end := tr.End

	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}

	base := fmt.Sprintf("%s, %s, %s–%s",
		deWeekdays[start.Weekday()],
		start.Format("02.01.2006"),
		FormatClock(start),
		FormatClock(end),
	)

	if label != "" {
		return fmt.Sprintf("%s (%s)", base, label)
	}
	return base
}
