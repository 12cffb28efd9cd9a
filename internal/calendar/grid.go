package calendar

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Leganyst/court-reservation/internal/utils"
)

const (
	SlotMinutes = 30
	SlotHours   = 0.5

	// DayStart: первый слот дня; DayEnd: закрытие клуба, последний слот
	// начинается на один слот раньше.
	DayStart = "08:00"
	DayEnd   = "21:00"

	dayLayout = "2006-01-02"
)

var (
	timeSlots = buildTimeSlots()
	slotIndex = indexTimeSlots(timeSlots)
)

func buildTimeSlots() []string {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	day, err := utils.ClockRange(base, DayStart, DayEnd)
	if err != nil {
		panic(fmt.Sprintf("calendar: venue hours: %v", err))
	}
	ranges, err := utils.SplitToTimeSlots(day, SlotMinutes*time.Minute, 0)
	if err != nil {
		panic(fmt.Sprintf("calendar: split venue hours: %v", err))
	}
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, utils.FormatClock(r.Start))
	}
	return out
}

func indexTimeSlots(slots []string) map[string]int {
	idx := make(map[string]int, len(slots))
	for i, s := range slots {
		idx[s] = i
	}
	return idx
}

// GenerateSlots возвращает начала слотов дня по порядку.
// Каждый вызов отдаёт новую копию.
func GenerateSlots() []string {
	return slices.Clone(timeSlots)
}

// SlotIndex: позиция t в сетке или -1.
func SlotIndex(t string) int {
	if i, ok := slotIndex[t]; ok {
		return i
	}
	return -1
}

// IsGridTime: t является началом слота.
func IsGridTime(t string) bool {
	return SlotIndex(t) >= 0
}

// ParseTimeOfDay проверяет "HH:MM" фиксированной ширины и возвращает минуты от полуночи.
func ParseTimeOfDay(s string) (int, error) {
	off, err := utils.ClockOffset(s)
	if err != nil {
		return 0, Validationf("bad time %q, want HH:MM", s)
	}
	return int(off / time.Minute), nil
}

// slotRange: интервал времени, который покрывают слоты [start, end).
func slotRange(day Day, start, end string) utils.TimeRange {
	tr, err := utils.ClockRange(day.Time(), start, end)
	if err != nil {
		return utils.TimeRange{}
	}
	return tr
}

// endOf: конец слота, начинающегося в t.
func endOf(t string) string {
	i := SlotIndex(t)
	if i < 0 {
		return ""
	}
	if i+1 < len(timeSlots) {
		return timeSlots[i+1]
	}
	return DayEnd
}

// Day: календарная дата без времени.
type Day struct {
	t time.Time
}

// ParseDay разбирает "YYYY-MM-DD".
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, Validationf("bad date %q, want YYYY-MM-DD", s)
	}
	return Day{t: t}, nil
}

// DayOf отбрасывает время суток.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Day) Key() string { return d.t.Format(dayLayout) }
func (d Day) String() string { return d.Key() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) Time() time.Time { return d.t }
func (d Day) IsZero() bool { return d.t.IsZero() }
func (d Day) Equal(other Day) bool { return d.t.Equal(other.t) }
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) MarshalText() ([]byte, error) { return []byte(d.Key()), nil }

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Courts: упорядоченный список кортов клуба; корт задаётся индексом.
type Courts []string

// DefaultCourts: три корта клуба.
var DefaultCourts = Courts{"P1", "P2", "P3"}

// ParseCourts собирает список кортов из имён, пустые пропускает.
func ParseCourts(names []string) (Courts, error) {
	out := make(Courts, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, Validationf("at least one court is required")
	}
	return out, nil
}

func (c Courts) Valid(i int) bool { return i >= 0 && i < len(c) }

// Name: отображаемое имя корта i.
func (c Courts) Name(i int) string {
	if c.Valid(i) {
		return c[i]
	}
	return fmt.Sprintf("Court %d", i+1)
}

// Label: подпись слотов [start, end) на корте для сообщений участнику.
func (c Courts) Label(court int, day Day, start, end string) string {
	return utils.FormatSlotForUser(slotRange(day, start, end), nil, c.Name(court))
}
