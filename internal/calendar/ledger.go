package calendar

import (
	"sort"
)

// Booking занимает один слот.
type Booking struct {
	ID       string `json:"id,omitempty"`
	Court    int    `json:"court"`
	Day      Day    `json:"day"`
	Time     string `json:"time"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	CoPlayer string `json:"co_player,omitempty"`
}

// Ledger: брони ровно одного дня.
type Ledger struct {
	day      Day
	bookings map[slotKey]Booking
}

// NewLedger собирает брони дня из строк хранилища. Строки другого дня,
// время вне сетки и повторы координат отклоняются.
func NewLedger(day Day, rows []Booking) (*Ledger, error) {
	l := &Ledger{day: day, bookings: make(map[slotKey]Booking, len(rows))}
	for _, b := range rows {
		if !b.Day.Equal(day) {
			return nil, Validationf("booking %s/%s belongs to %s, not %s", b.Time, b.Day, b.Day, day)
		}
		if !IsGridTime(b.Time) {
			return nil, Validationf("booking time %q is not on the grid", b.Time)
		}
		if b.Court < 0 {
			return nil, Validationf("negative court %d", b.Court)
		}
		key := coordKey(b.Court, day, b.Time)
		if _, dup := l.bookings[key]; dup {
			return nil, Validationf("duplicate booking for court %d at %s", b.Court, b.Time)
		}
		l.bookings[key] = b
	}
	return l, nil
}

func (l *Ledger) Day() Day { return l.day }
func (l *Ledger) Len() int { return len(l.bookings) }

func (l *Ledger) IsBooked(court int, t string) bool {
	_, ok := l.bookings[coordKey(court, l.day, t)]
	return ok
}

func (l *Ledger) Get(court int, t string) (Booking, bool) {
	b, ok := l.bookings[coordKey(court, l.day, t)]
	return b, ok
}

// ForUser: брони участника по корту и времени.
func (l *Ledger) ForUser(userID string) []Booking {
	var out []Booking
	for _, b := range l.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out
}

// All: все брони по корту и времени.
func (l *Ledger) All() []Booking {
	out := make([]Booking, 0, len(l.bookings))
	for _, b := range l.bookings {
		out = append(out, b)
	}
	sortBookings(out)
	return out
}

func sortBookings(bs []Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Court != bs[j].Court {
			return bs[i].Court < bs[j].Court
		}
		return bs[i].Time < bs[j].Time
	})
}
