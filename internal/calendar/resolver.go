package calendar

import "github.com/Leganyst/court-reservation/internal/utils"

// SlotState: состояние одного слота.
type SlotState int

const (
	SlotFree SlotState = iota
	SlotBooked
	SlotBlocked
)

func (s SlotState) String() string {
	switch s {
	case SlotBooked:
		return "BOOKED"
	case SlotBlocked:
		return "BLOCKED"
	default:
		return "FREE"
	}
}

func (s SlotState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Resolver отвечает на вопросы о доступности по снимку одного дня.
type Resolver struct {
	courts Courts
	blocks *BlockIndex
	ledger *Ledger
}

func NewResolver(courts Courts, blocks *BlockIndex, ledger *Ledger) *Resolver {
	return &Resolver{courts: courts, blocks: blocks, ledger: ledger}
}

func (r *Resolver) Day() Day { return r.ledger.Day() }
func (r *Resolver) Courts() Courts { return r.courts }
func (r *Resolver) Ledger() *Ledger { return r.ledger }
func (r *Resolver) Blocks() *BlockIndex { return r.blocks }
func (r *Resolver) Quota() QuotaTracker { return NewQuotaTracker(r.ledger) }

func (r *Resolver) checkCoord(court int, day Day, t string) error {
	if !day.Equal(r.ledger.Day()) {
		return Validationf("snapshot is for %s, not %s", r.ledger.Day(), day)
	}
	if !r.courts.Valid(court) {
		return Validationf("unknown court %d", court)
	}
	if !IsGridTime(t) {
		return Validationf("%q is not a slot start", t)
	}
	return nil
}

// Classify возвращает состояние слота. Бронь на заблокированном слоте
// показывается как BOOKED.
func (r *Resolver) Classify(court int, day Day, t string) (SlotState, error) {
	if err := r.checkCoord(court, day, t); err != nil {
		return SlotFree, err
	}
	return r.classify(court, t), nil
}

func (r *Resolver) classify(court int, t string) SlotState {
	switch {
	case r.ledger.IsBooked(court, t):
		return SlotBooked
	case r.blocks.IsBlocked(court, r.ledger.Day(), t):
		return SlotBlocked
	default:
		return SlotFree
	}
}

// AvailableEndTimesFrom перечисляет допустимые концы брони от start.
// Обход идёт со слота после start и останавливается, как только слот перед
// кандидатом занят: каждый вариант закрывает непрерывный свободный отрезок.
// Пустой результат значит, что доступен только один слот. Время закрытия
// клуба не предлагается.
func (r *Resolver) AvailableEndTimesFrom(court int, day Day, start string) ([]string, error) {
	if err := r.checkCoord(court, day, start); err != nil {
		return nil, err
	}
	var options []string
	for idx := SlotIndex(start) + 1; idx < len(timeSlots); idx++ {
		if r.classify(court, timeSlots[idx-1]) != SlotFree {
			break
		}
		options = append(options, timeSlots[idx])
	}
	return options, nil
}

// RangeTimes разворачивает [start, end) в начала слотов. Пустой end
// означает только стартовый слот.
func RangeTimes(start, end string) ([]string, error) {
	si := SlotIndex(start)
	if si < 0 {
		return nil, Validationf("%q is not a slot start", start)
	}
	if end == "" {
		return []string{start}, nil
	}
	ei := SlotIndex(end)
	if end == DayEnd {
		ei = len(timeSlots)
	}
	if ei <= si {
		return nil, Validationf("end %q must be a slot after %s", end, start)
	}
	return GenerateSlots()[si:ei], nil
}

// Cell: слот в сетке дня.
type Cell struct {
	Time    string    `json:"time"`
	State   SlotState `json:"state"`
	Reason  string    `json:"reason,omitempty"`
	Manual  bool      `json:"manual,omitempty"`
	Booking *Booking  `json:"booking,omitempty"`
}

// CourtColumn: колонка одного корта.
type CourtColumn struct {
	Court int    `json:"court"`
	Name  string `json:"name"`
	Cells []Cell `json:"cells"`
}

// DayView: сетка, которую показывают за дату.
type DayView struct {
	Day     Day           `json:"date"`
	Weekday string        `json:"weekday"`
	Times   []string      `json:"times"`
	Courts  []CourtColumn `json:"courts"`
}

// DayView отдаёт снимок в виде для показа.
func (r *Resolver) DayView() DayView {
	day := r.ledger.Day()
	view := DayView{
		Day:     day,
		Weekday: utils.WeekdayShort(day.Weekday()),
		Times:   GenerateSlots(),
		Courts:  make([]CourtColumn, 0, len(r.courts)),
	}
	for ci, name := range r.courts {
		col := CourtColumn{Court: ci, Name: name, Cells: make([]Cell, 0, len(timeSlots))}
		for _, t := range timeSlots {
			cell := Cell{Time: t, State: r.classify(ci, t)}
			cell.Manual = r.blocks.IsManuallyBlocked(ci, day, t)
			if reason, ok := r.blocks.BlockReason(ci, day, t); ok {
				cell.Reason = reason
			}
			if b, ok := r.ledger.Get(ci, t); ok {
				cell.Booking = &b
			}
			col.Cells = append(col.Cells, cell)
		}
		view.Courts = append(view.Courts, col)
	}
	return view
}
