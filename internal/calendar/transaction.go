package calendar

import (
	"fmt"
	"slices"
	"strings"
)

// Actor: участник, который совершает действие.
type Actor struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Phase: фаза транзакции бронирования.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSlotSelected
	PhaseDeleteRequested
	PhaseCommitted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseSlotSelected:
		return "SLOT_SELECTED"
	case PhaseDeleteRequested:
		return "DELETE_REQUESTED"
	case PhaseCommitted:
		return "COMMITTED"
	case PhaseCancelled:
		return "CANCELLED"
	default:
		return "IDLE"
	}
}

type PendingKind string

const (
	PendingBook   PendingKind = "book"
	PendingDelete PendingKind = "delete"
)

// Pending: решение, ждущее подтверждения участника. Это простые данные,
// их можно отложить между запросами.
type Pending struct {
	Kind       PendingKind `json:"kind"`
	Court      int         `json:"court"`
	Day        Day         `json:"day"`
	Start      string      `json:"start"`
	EndOptions []string    `json:"end_options,omitempty"`
	Booking    *Booking    `json:"booking,omitempty"`
}

// SingleSlot: можно забронировать только стартовый слот.
func (p Pending) SingleSlot() bool {
	return p.Kind == PendingBook && len(p.EndOptions) == 0
}

// ConfirmRequest завершает решение о брони. Пустой End бронирует только
// стартовый слот.
type ConfirmRequest struct {
	End      string `json:"end,omitempty"`
	CoPlayer string `json:"co_player,omitempty"`
}

// Transaction превращает нажатия на сетку в записи брони или удаления.
// Не потокобезопасна: вызывающий сериализует действия одного участника.
type Transaction struct {
	actor    Actor
	resolver *Resolver
	maxHours float64

	phase   Phase
	pending *Pending
	// варианты, предложенные при первом нажатии; после Resume на свежем
	// снимке могут отличаться от pending.EndOptions
	offered []string
}

func NewTransaction(actor Actor, resolver *Resolver, maxHours float64) *Transaction {
	return &Transaction{actor: actor, resolver: resolver, maxHours: maxHours}
}

func (tx *Transaction) Phase() Phase { return tx.phase }

// Pending возвращает копию открытого решения.
func (tx *Transaction) Pending() (Pending, bool) {
	if tx.pending == nil {
		return Pending{}, false
	}
	p := *tx.pending
	p.EndOptions = slices.Clone(p.EndOptions)
	return p, true
}

// Press обрабатывает нажатие на слот. При ошибке транзакция не меняется.
func (tx *Transaction) Press(court int, day Day, t string) (Pending, error) {
	state, err := tx.resolver.Classify(court, day, t)
	if err != nil {
		return Pending{}, err
	}

	switch state {
	case SlotBooked:
		b, _ := tx.resolver.Ledger().Get(court, t)
		if !tx.mayDelete(b) {
			return Pending{}, fmt.Errorf("%w: %s is booked by another member; only admins can change it",
				ErrPermission, t)
		}
		bc := b
		tx.open(PhaseDeleteRequested, &Pending{Kind: PendingDelete, Court: court, Day: day, Start: t, Booking: &bc})

	case SlotBlocked:
		reason, _ := tx.resolver.Blocks().BlockReason(court, day, t)
		return Pending{}, &BlockedError{Reason: reason, Informational: tx.actor.IsAdmin}

	default:
		options, err := tx.resolver.AvailableEndTimesFrom(court, day, t)
		if err != nil {
			return Pending{}, err
		}
		tx.open(PhaseSlotSelected, &Pending{Kind: PendingBook, Court: court, Day: day, Start: t, EndOptions: options})
	}

	p, _ := tx.Pending()
	return p, nil
}

func (tx *Transaction) mayDelete(b Booking) bool {
	return tx.actor.IsAdmin || b.UserID == tx.actor.UserID
}

func (tx *Transaction) open(phase Phase, p *Pending) {
	tx.phase = phase
	tx.pending = p
	tx.offered = slices.Clone(p.EndOptions)
}

// Resume поднимает решение прошлого запроса на текущем снимке. Если слот
// за это время изменился, возвращается ErrConflict.
func (tx *Transaction) Resume(p Pending) error {
	if !p.Day.Equal(tx.resolver.Day()) {
		return Validationf("pending decision is for %s, snapshot for %s", p.Day, tx.resolver.Day())
	}
	state, err := tx.resolver.Classify(p.Court, p.Day, p.Start)
	if err != nil {
		return err
	}

	switch p.Kind {
	case PendingBook:
		if state != SlotFree {
			return fmt.Errorf("%w: %s is no longer free", ErrConflict, p.Start)
		}
		options, err := tx.resolver.AvailableEndTimesFrom(p.Court, p.Day, p.Start)
		if err != nil {
			return err
		}
		tx.phase = PhaseSlotSelected
		tx.offered = slices.Clone(p.EndOptions)
		tx.pending = &Pending{Kind: PendingBook, Court: p.Court, Day: p.Day, Start: p.Start, EndOptions: options}
		return nil

	case PendingDelete:
		if p.Booking == nil {
			return Validationf("pending deletion without booking")
		}
		cur, ok := tx.resolver.Ledger().Get(p.Court, p.Start)
		if !ok || cur.UserID != p.Booking.UserID {
			return fmt.Errorf("%w: booking at %s has changed", ErrConflict, p.Start)
		}
		if !tx.mayDelete(cur) {
			return fmt.Errorf("%w: booking belongs to another member", ErrPermission)
		}
		tx.open(PhaseDeleteRequested, &Pending{Kind: PendingDelete, Court: p.Court, Day: p.Day, Start: p.Start, Booking: &cur})
		return nil

	default:
		return Validationf("unknown pending kind %q", p.Kind)
	}
}

// Confirm завершает решение о брони и возвращает по записи на каждый слот
// [start, end). Ошибки квоты и диапазона отменяют транзакцию.
func (tx *Transaction) Confirm(req ConfirmRequest) ([]Booking, error) {
	if tx.phase != PhaseSlotSelected || tx.pending == nil {
		return nil, Validationf("no slot selected")
	}
	p := tx.pending

	end := strings.TrimSpace(req.End)
	if end != "" && !slices.Contains(p.EndOptions, end) {
		stale := slices.Contains(tx.offered, end)
		tx.Cancel()
		if stale {
			return nil, fmt.Errorf("%w: range %s-%s is no longer free", ErrConflict, p.Start, end)
		}
		return nil, Validationf("end %q is not available from %s", end, p.Start)
	}

	times, err := RangeTimes(p.Start, end)
	if err != nil {
		tx.Cancel()
		return nil, err
	}

	if err := tx.resolver.Quota().Check(tx.actor, len(times), tx.maxHours); err != nil {
		tx.Cancel()
		return nil, err
	}

	coPlayer := strings.TrimSpace(req.CoPlayer)
	out := make([]Booking, 0, len(times))
	for _, t := range times {
		out = append(out, Booking{
			Court:    p.Court,
			Day:      p.Day,
			Time:     t,
			UserID:   tx.actor.UserID,
			UserName: tx.actor.Name,
			CoPlayer: coPlayer,
		})
	}
	tx.phase = PhaseCommitted
	tx.pending = nil
	return out, nil
}

// ConfirmDelete завершает решение об удалении и возвращает удаляемую бронь.
func (tx *Transaction) ConfirmDelete() (Booking, error) {
	if tx.phase != PhaseDeleteRequested || tx.pending == nil || tx.pending.Booking == nil {
		return Booking{}, Validationf("no deletion requested")
	}
	b := *tx.pending.Booking
	tx.phase = PhaseCommitted
	tx.pending = nil
	return b, nil
}

// Cancel отбрасывает открытое решение.
func (tx *Transaction) Cancel() {
	tx.phase = PhaseCancelled
	tx.pending = nil
	tx.offered = nil
}
