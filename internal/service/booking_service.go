package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/mq"
	"github.com/Leganyst/court-reservation/internal/repository"
)

// BookingService проводит действия участника через ядро:
// снимок дня → решение → запись в БД → ответ. Локальное состояние меняется
// только после успешной записи.
type BookingService struct {
	club      *calendar.Club
	bookings  repository.BookingRepository
	members   calendar.MemberStore
	manual    ManualBlockStore
	pending   PendingStore
	publisher mq.EventPublisher
	timeout   time.Duration
	now       func() time.Time

	locks memberLocks
}

func NewBookingService(
	club *calendar.Club,
	bookings repository.BookingRepository,
	members calendar.MemberStore,
	manual ManualBlockStore,
	pending PendingStore,
	publisher mq.EventPublisher,
	timeout time.Duration,
) *BookingService {
	return &BookingService{
		club:      club,
		bookings:  bookings,
		members:   members,
		manual:    manual,
		pending:   pending,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
	}
}

// QuotaInfo: сколько часов участник уже занял на дату.
type QuotaInfo struct {
	MaxHours    float64 `json:"max_hours"`
	BookedHours float64 `json:"booked_hours"`
	Exempt      bool    `json:"exempt"`
}

// DayResult: сетка дня вместе с квотой и открытым решением участника.
type DayResult struct {
	View    calendar.DayView  `json:"view"`
	Quota   QuotaInfo         `json:"quota"`
	Pending *calendar.Pending `json:"pending,omitempty"`
}

// Decision: ответ на нажатие: открытое решение и подпись слота.
type Decision struct {
	Pending calendar.Pending `json:"pending"`
	Label   string           `json:"label"`
}

// Authenticate пропускает участника через допуск клуба.
func (s *BookingService) Authenticate(ctx context.Context, userID string) (calendar.Actor, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	actor, err := calendar.ValidateMember(ctx, s.members, userID)
	if calendar.Kind(err) == calendar.KindInternal {
		return calendar.Actor{}, storeErr("find member", err)
	}
	return actor, err
}

// snapshot загружает всё, что нужно ядру для одной даты.
func (s *BookingService) snapshot(ctx context.Context, day calendar.Day) (*calendar.Resolver, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.bookings.ListByDay(ctx, day.Key())
	if err != nil {
		return nil, storeErr("list bookings", err)
	}
	manual, err := s.manual.Load(ctx, day)
	if err != nil {
		return nil, storeErr("load manual blocks", err)
	}

	bookings, skipped := repository.ToCoreBookings(rows)
	for _, e := range skipped {
		log.Printf("[booking] skip booking row: %v", e)
	}
	ledger, err := calendar.NewLedger(day, bookings)
	if err != nil {
		return nil, fmt.Errorf("build ledger for %s: %w", day, err)
	}
	return calendar.NewResolver(s.club.Courts(), s.club.BlockIndex(manual), ledger), nil
}

func (s *BookingService) Day(ctx context.Context, actor calendar.Actor, day calendar.Day) (result DayResult, err error) {
	ctx, span := startSpan(ctx, "BookingService.Day", actor, attribute.String("day", day.Key()))
	defer func() { endSpan(span, err) }()

	r, err := s.snapshot(ctx, day)
	if err != nil {
		return DayResult{}, err
	}
	result = DayResult{
		View: r.DayView(),
		Quota: QuotaInfo{
			MaxHours:    s.club.MaxHours(),
			BookedHours: r.Quota().HoursBooked(actor.UserID),
			Exempt:      actor.IsAdmin,
		},
	}

	pctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if p, err := s.pending.Get(pctx, actor.UserID); err != nil {
		log.Printf("[booking] load pending for %s: %v", actor.UserID, err)
	} else if p != nil && p.Day.Equal(day) {
		result.Pending = p
	}
	return result, nil
}

// Press обрабатывает нажатие на слот. Новое решение заменяет предыдущее.
func (s *BookingService) Press(ctx context.Context, actor calendar.Actor, day calendar.Day, court int, t string) (dec Decision, err error) {
	ctx, span := startSpan(ctx, "BookingService.Press", actor,
		attribute.String("day", day.Key()), attribute.Int("court", court), attribute.String("time", t))
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(actor.UserID)
	defer unlock()

	r, err := s.snapshot(ctx, day)
	if err != nil {
		return Decision{}, err
	}
	tx := calendar.NewTransaction(actor, r, s.club.MaxHours())
	p, err := tx.Press(court, day, t)
	if err != nil {
		return Decision{}, err
	}

	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.pending.Save(sctx, actor.UserID, p); err != nil {
		return Decision{}, storeErr("save pending", err)
	}

	label := s.club.Courts().Label(p.Court, p.Day, p.Start, endAfter(p.Start))
	return Decision{Pending: p, Label: label}, nil
}

// resume поднимает сохранённое решение на свежем снимке.
func (s *BookingService) resume(ctx context.Context, actor calendar.Actor, kind calendar.PendingKind) (*calendar.Transaction, error) {
	gctx, cancel := withTimeout(ctx, s.timeout)
	p, err := s.pending.Get(gctx, actor.UserID)
	cancel()
	if err != nil {
		return nil, storeErr("load pending", err)
	}
	if p == nil || p.Kind != kind {
		return nil, calendar.Validationf("nothing to confirm")
	}

	r, err := s.snapshot(ctx, p.Day)
	if err != nil {
		return nil, err
	}
	tx := calendar.NewTransaction(actor, r, s.club.MaxHours())
	if err := tx.Resume(*p); err != nil {
		s.dropPending(ctx, actor.UserID)
		return nil, err
	}
	return tx, nil
}

func (s *BookingService) dropPending(ctx context.Context, userID string) {
	dctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.pending.Delete(dctx, userID); err != nil {
		log.Printf("[booking] drop pending for %s: %v", userID, err)
	}
}

// Confirm завершает бронирование диапазона одной записью в БД.
func (s *BookingService) Confirm(ctx context.Context, actor calendar.Actor, req calendar.ConfirmRequest) (created []calendar.Booking, err error) {
	ctx, span := startSpan(ctx, "BookingService.Confirm", actor, attribute.String("end", req.End))
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(actor.UserID)
	defer unlock()

	tx, err := s.resume(ctx, actor, calendar.PendingBook)
	if err != nil {
		return nil, err
	}
	bookings, err := tx.Confirm(req)
	if err != nil {
		s.dropPending(ctx, actor.UserID)
		return nil, err
	}

	rows, err := repository.FromCoreBookings(bookings)
	if err != nil {
		s.dropPending(ctx, actor.UserID)
		return nil, err
	}
	first := bookings[0]
	last := bookings[len(bookings)-1]
	audit, err := repository.NewAuditEvent(model.EventTypeBookingCreated, actor.UserID, map[string]any{
		"court": first.Court,
		"date":  first.Day.Key(),
		"times": bookingTimes(bookings),
	})
	if err != nil {
		return nil, err
	}

	wctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.bookings.CreateBatch(wctx, rows, audit); err != nil {
		err = storeErr("insert bookings", err)
		if calendar.Kind(err) == calendar.KindConflict {
			s.dropPending(ctx, actor.UserID)
		}
		return nil, err
	}

	for i := range bookings {
		bookings[i].ID = rows[i].ID.String()
	}
	s.dropPending(ctx, actor.UserID)
	log.Printf("[booking] %s booked %s", actor.UserID, s.club.Courts().Label(first.Court, first.Day, first.Time, endAfter(last.Time)))
	mq.Publish(ctx, s.publisher, mq.KeyBookingCreated, map[string]any{
		"user_id":  actor.UserID,
		"bookings": bookings,
	})
	return bookings, nil
}

// ConfirmDelete удаляет ровно одну бронь слота.
func (s *BookingService) ConfirmDelete(ctx context.Context, actor calendar.Actor) (deleted calendar.Booking, err error) {
	ctx, span := startSpan(ctx, "BookingService.ConfirmDelete", actor)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(actor.UserID)
	defer unlock()

	tx, err := s.resume(ctx, actor, calendar.PendingDelete)
	if err != nil {
		return calendar.Booking{}, err
	}
	b, err := tx.ConfirmDelete()
	if err != nil {
		return calendar.Booking{}, err
	}

	audit, err := repository.NewAuditEvent(model.EventTypeBookingDeleted, actor.UserID, map[string]any{
		"court":   b.Court,
		"date":    b.Day.Key(),
		"time":    b.Time,
		"user_id": b.UserID,
	})
	if err != nil {
		return calendar.Booking{}, err
	}

	wctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.bookings.DeleteSlot(wctx, b.Court, b.Day.Key(), b.Time, audit)
	if err != nil {
		return calendar.Booking{}, storeErr("delete booking", err)
	}
	s.dropPending(ctx, actor.UserID)
	if !ok {
		return calendar.Booking{}, fmt.Errorf("%w: booking at %s was already removed", calendar.ErrConflict, b.Time)
	}

	log.Printf("[booking] %s deleted booking of %s at %s %s", actor.UserID, b.UserID, b.Day, b.Time)
	mq.Publish(ctx, s.publisher, mq.KeyBookingDeleted, map[string]any{
		"user_id": actor.UserID,
		"booking": b,
	})
	return b, nil
}

// Pending возвращает открытое решение участника или nil.
func (s *BookingService) Pending(ctx context.Context, actor calendar.Actor) (*calendar.Pending, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.pending.Get(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("load pending", err)
	}
	return p, nil
}

// Cancel отбрасывает открытое решение.
func (s *BookingService) Cancel(ctx context.Context, actor calendar.Actor) error {
	unlock := s.locks.lock(actor.UserID)
	defer unlock()

	dctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return storeErr("delete pending", s.pending.Delete(dctx, actor.UserID))
}

// MyBookings: предстоящие брони участника.
func (s *BookingService) MyBookings(ctx context.Context, actor calendar.Actor, page, pageSize int) (calendar.Page[calendar.Booking], error) {
	uid, err := uuid.Parse(actor.UserID)
	if err != nil {
		return calendar.Page[calendar.Booking]{}, calendar.Validationf("bad user id")
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	today := calendar.DayOf(s.now())
	rows, _, err := s.bookings.ListByUser(ctx, uid, today.Key(), 0, 0)
	if err != nil {
		return calendar.Page[calendar.Booking]{}, storeErr("list bookings", err)
	}
	bookings, skipped := repository.ToCoreBookings(rows)
	for _, e := range skipped {
		log.Printf("[booking] skip booking row: %v", e)
	}
	return calendar.Paginate(bookings, page, pageSize), nil
}

// YearCount: число забронированных слотов участника за год (0: текущий).
func (s *BookingService) YearCount(ctx context.Context, actor calendar.Actor, year int) (int64, error) {
	uid, err := uuid.Parse(actor.UserID)
	if err != nil {
		return 0, calendar.Validationf("bad user id")
	}
	if year == 0 {
		year = s.now().Year()
	}
	if year < 2000 || year > 9999 {
		return 0, calendar.Validationf("year %d out of range", year)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	y := strconv.Itoa(year)
	n, err := s.bookings.CountByUserBetween(ctx, uid, y+"-01-01", y+"-12-31")
	return n, storeErr("count bookings", err)
}

func bookingTimes(bs []calendar.Booking) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Time)
	}
	return out
}

func endAfter(t string) string {
	slots := calendar.GenerateSlots()
	if i := calendar.SlotIndex(t); i >= 0 && i+1 < len(slots) {
		return slots[i+1]
	}
	return calendar.DayEnd
}
