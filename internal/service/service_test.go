package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/db"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/repository"
)

// 2025-01-06: понедельник.
var monday = mustDay("2025-01-06")

func mustDay(s string) calendar.Day {
	d, err := calendar.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) published(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.keys, key)
}

type fixture struct {
	gdb      *gorm.DB
	mr       *miniredis.Miniredis
	club     *calendar.Club
	users    *repository.GormUserRepository
	rules    *repository.GormWeeklyBlockRepository
	settings *repository.GormSettingRepository
	pending  *repository.PendingStore
	pub      *recordingPublisher
	booking  *BookingService
	admin    *AdminService
}

func newFixture(t *testing.T, opts ...calendar.ClubOption) *fixture {
	t.Helper()
	gdb, err := db.NewInMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	client := repository.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		gdb:      gdb,
		mr:       mr,
		club:     calendar.NewClub(calendar.DefaultCourts, opts...),
		users:    repository.NewGormUserRepository(gdb),
		rules:    repository.NewGormWeeklyBlockRepository(gdb),
		settings: repository.NewGormSettingRepository(gdb),
		pending:  repository.NewPendingStore(client, time.Minute),
		pub:      &recordingPublisher{},
	}
	manual := repository.NewManualBlockStore(client)
	timeout := 2 * time.Second

	f.booking = NewBookingService(f.club, repository.NewGormBookingRepository(gdb), f.users, manual, f.pending, f.pub, timeout)
	f.booking.now = func() time.Time { return time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC) }
	f.admin = NewAdminService(f.club, f.rules, f.settings, f.users, repository.NewGormEventRepository(gdb), manual, f.pub, timeout)
	return f
}

// member регистрирует участника, выставляет статус и возвращает его Actor.
func (f *fixture) member(t *testing.T, name string, admin bool, status model.UserStatus) calendar.Actor {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Register(ctx, name, admin)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if status != model.UserStatusPending {
		if err := f.users.SetStatus(ctx, u.ID, status, nil); err != nil {
			t.Fatalf("set status: %v", err)
		}
	}
	return calendar.Actor{UserID: u.ID.String(), Name: u.Name, IsAdmin: admin}
}

func (f *fixture) book(t *testing.T, actor calendar.Actor, court int, start, end string) []calendar.Booking {
	t.Helper()
	ctx := context.Background()
	if _, err := f.booking.Press(ctx, actor, monday, court, start); err != nil {
		t.Fatalf("press %s: %v", start, err)
	}
	created, err := f.booking.Confirm(ctx, actor, calendar.ConfirmRequest{End: end})
	if err != nil {
		t.Fatalf("confirm %s-%s: %v", start, end, err)
	}
	return created
}

func (f *fixture) cell(t *testing.T, actor calendar.Actor, court int, tm string) calendar.Cell {
	t.Helper()
	res, err := f.booking.Day(context.Background(), actor, monday)
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	for _, c := range res.View.Courts[court].Cells {
		if c.Time == tm {
			return c
		}
	}
	t.Fatalf("no cell %s on court %d", tm, court)
	return calendar.Cell{}
}

func countEvents(t *testing.T, gdb *gorm.DB, et model.EventType) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(&model.Event{}).Where("event_type = ?", et).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func TestBookingService_PressAndConfirmRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	dec, err := f.booking.Press(ctx, uta, monday, 1, "09:00")
	if err != nil {
		t.Fatalf("press: %v", err)
	}
	if dec.Pending.Kind != calendar.PendingBook || dec.Pending.EndOptions[0] != "09:30" {
		t.Fatalf("unexpected pending %+v", dec.Pending)
	}
	if dec.Label != "Mo, 06.01.2025, 09:00–09:30 (P2)" {
		t.Fatalf("unexpected label %q", dec.Label)
	}

	res, err := f.booking.Day(ctx, uta, monday)
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if res.Pending == nil || res.Pending.Start != "09:00" {
		t.Fatalf("pending decision must be visible in the day, got %+v", res.Pending)
	}

	created, err := f.booking.Confirm(ctx, uta, calendar.ConfirmRequest{End: "10:00", CoPlayer: " Karl "})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(created) != 2 || created[0].Time != "09:00" || created[1].Time != "09:30" {
		t.Fatalf("unexpected bookings %+v", created)
	}
	if created[0].ID == "" || created[0].CoPlayer != "Karl" {
		t.Fatalf("bookings must carry id and co-player, got %+v", created[0])
	}

	c := f.cell(t, uta, 1, "09:30")
	if c.State != calendar.SlotBooked || c.Booking == nil || c.Booking.UserID != uta.UserID {
		t.Fatalf("09:30 must be booked by uta, got %+v", c)
	}
	if p, _ := f.pending.Get(ctx, uta.UserID); p != nil {
		t.Fatalf("pending must be dropped after commit")
	}
	if !f.pub.published("booking.created") {
		t.Fatalf("booking.created was not published")
	}
	if countEvents(t, f.gdb, model.EventTypeBookingCreated) != 1 {
		t.Fatalf("expected one audit event")
	}

	res, err = f.booking.Day(ctx, uta, monday)
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if res.Quota.BookedHours != 1 || res.Quota.MaxHours != 2 {
		t.Fatalf("unexpected quota %+v", res.Quota)
	}
}

func TestBookingService_ConfirmWithoutPending(t *testing.T) {
	f := newFixture(t)
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	_, err := f.booking.Confirm(context.Background(), uta, calendar.ConfirmRequest{})
	if !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBookingService_QuotaExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	f.book(t, uta, 1, "09:00", "11:00")

	if _, err := f.booking.Press(ctx, uta, monday, 1, "12:00"); err != nil {
		t.Fatalf("press: %v", err)
	}
	_, err := f.booking.Confirm(ctx, uta, calendar.ConfirmRequest{})
	var qe *calendar.QuotaError
	if !errors.As(err, &qe) || !errors.Is(err, calendar.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if qe.Booked != 2 || qe.Cap != 2 {
		t.Fatalf("unexpected quota error %+v", qe)
	}
	if p, _ := f.pending.Get(ctx, uta.UserID); p != nil {
		t.Fatalf("quota failure cancels the decision")
	}
	if c := f.cell(t, uta, 1, "12:00"); c.State != calendar.SlotFree {
		t.Fatalf("nothing may be stored, got %+v", c)
	}
}

func TestBookingService_AdminIsExemptFromQuota(t *testing.T) {
	f := newFixture(t)
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	created := f.book(t, admin, 0, "08:00", "12:00")
	if len(created) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(created))
	}
}

func TestBookingService_ConflictOnSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)
	karl := f.member(t, "Karl", false, model.UserStatusApproved)

	if _, err := f.booking.Press(ctx, uta, monday, 1, "09:00"); err != nil {
		t.Fatalf("uta press: %v", err)
	}
	f.book(t, karl, 1, "09:00", "")

	_, err := f.booking.Confirm(ctx, uta, calendar.ConfirmRequest{})
	if !errors.Is(err, calendar.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if p, _ := f.pending.Get(ctx, uta.UserID); p != nil {
		t.Fatalf("conflict drops the decision")
	}
	if c := f.cell(t, uta, 1, "09:00"); c.Booking == nil || c.Booking.UserID != karl.UserID {
		t.Fatalf("karl must keep the slot, got %+v", c)
	}
}

func TestBookingService_StaleEndIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)
	karl := f.member(t, "Karl", false, model.UserStatusApproved)

	dec, err := f.booking.Press(ctx, uta, monday, 0, "09:00")
	if err != nil {
		t.Fatalf("press: %v", err)
	}
	if !slices.Contains(dec.Pending.EndOptions, "10:00") {
		t.Fatalf("10:00 must be offered, got %v", dec.Pending.EndOptions)
	}
	f.book(t, karl, 0, "09:30", "")

	_, err = f.booking.Confirm(ctx, uta, calendar.ConfirmRequest{End: "10:00"})
	if !errors.Is(err, calendar.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBookingService_InvalidEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	if _, err := f.booking.Press(ctx, uta, monday, 0, "09:00"); err != nil {
		t.Fatalf("press: %v", err)
	}
	_, err := f.booking.Confirm(ctx, uta, calendar.ConfirmRequest{End: "08:30"})
	if !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBookingService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)
	karl := f.member(t, "Karl", false, model.UserStatusApproved)
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	f.book(t, karl, 2, "17:00", "18:00")

	if _, err := f.booking.Press(ctx, uta, monday, 2, "17:00"); !errors.Is(err, calendar.ErrPermission) {
		t.Fatalf("uta may not touch karl's booking, got %v", err)
	}

	dec, err := f.booking.Press(ctx, karl, monday, 2, "17:00")
	if err != nil {
		t.Fatalf("press own booking: %v", err)
	}
	if dec.Pending.Kind != calendar.PendingDelete {
		t.Fatalf("expected delete decision, got %+v", dec.Pending)
	}
	deleted, err := f.booking.ConfirmDelete(ctx, karl)
	if err != nil {
		t.Fatalf("confirm delete: %v", err)
	}
	if deleted.Time != "17:00" || deleted.UserID != karl.UserID {
		t.Fatalf("unexpected deleted booking %+v", deleted)
	}
	if c := f.cell(t, karl, 2, "17:00"); c.State != calendar.SlotFree {
		t.Fatalf("17:00 must be free again, got %+v", c)
	}
	if c := f.cell(t, karl, 2, "17:30"); c.State != calendar.SlotBooked {
		t.Fatalf("only one slot is deleted, got %+v", c)
	}

	// освобождённый слот бронируется снова
	rebooked := f.book(t, karl, 2, "17:00", "17:30")
	if len(rebooked) != 1 || rebooked[0].ID == "" {
		t.Fatalf("expected one stored booking, got %+v", rebooked)
	}
	if c := f.cell(t, karl, 2, "17:00"); c.State != calendar.SlotBooked || c.Booking == nil || c.Booking.UserID != karl.UserID {
		t.Fatalf("17:00 must be booked by karl again, got %+v", c)
	}

	// админ может удалить чужую бронь
	if _, err := f.booking.Press(ctx, admin, monday, 2, "17:30"); err != nil {
		t.Fatalf("admin press: %v", err)
	}
	if _, err := f.booking.ConfirmDelete(ctx, admin); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if !f.pub.published("booking.deleted") || countEvents(t, f.gdb, model.EventTypeBookingDeleted) != 2 {
		t.Fatalf("deletions must be published and audited")
	}
}

func TestBookingService_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	if _, err := f.booking.Press(ctx, uta, monday, 0, "10:00"); err != nil {
		t.Fatalf("press: %v", err)
	}
	if err := f.booking.Cancel(ctx, uta); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.booking.Confirm(ctx, uta, calendar.ConfirmRequest{}); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("nothing left to confirm, got %v", err)
	}
}

func TestBookingService_PressBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	_, err := f.admin.AddRule(ctx, admin, RuleInput{Courts: []int{0}, Weekday: time.Monday, From: "18:00", To: "20:00", Reason: "Training"})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	_, err = f.booking.Press(ctx, uta, monday, 0, "18:30")
	var be *calendar.BlockedError
	if !errors.As(err, &be) || be.Reason != "Training" || !errors.Is(err, calendar.ErrPermission) {
		t.Fatalf("expected blocked error with reason, got %v", err)
	}

	_, err = f.booking.Press(ctx, admin, monday, 0, "18:30")
	if calendar.Kind(err) != calendar.KindNotice {
		t.Fatalf("admins get a notice, got %v", err)
	}

	// 17:30 свободен, но диапазон обрывается на правиле
	dec, err := f.booking.Press(ctx, uta, monday, 0, "17:00")
	if err != nil {
		t.Fatalf("press: %v", err)
	}
	if !slices.Equal(dec.Pending.EndOptions, []string{"17:30", "18:00"}) {
		t.Fatalf("unexpected options %v", dec.Pending.EndOptions)
	}
}

func TestBookingService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := f.member(t, "Uta", false, model.UserStatusApproved)
	pending := f.member(t, "Paul", false, model.UserStatusPending)
	blocked := f.member(t, "Bernd", false, model.UserStatusBlocked)
	pendingAdmin := f.member(t, "Anna", true, model.UserStatusPending)

	if a, err := f.booking.Authenticate(ctx, approved.UserID); err != nil || a.Name != "Uta" {
		t.Fatalf("approved member must pass, got %+v %v", a, err)
	}
	if _, err := f.booking.Authenticate(ctx, pending.UserID); !errors.Is(err, calendar.ErrMemberPending) {
		t.Fatalf("expected pending error, got %v", err)
	}
	if _, err := f.booking.Authenticate(ctx, blocked.UserID); !errors.Is(err, calendar.ErrMemberBlocked) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if a, err := f.booking.Authenticate(ctx, pendingAdmin.UserID); err != nil || !a.IsAdmin {
		t.Fatalf("pending admin must pass, got %+v %v", a, err)
	}
	if _, err := f.booking.Authenticate(ctx, "9c4f2b4e-0000-4000-8000-000000000000"); !errors.Is(err, calendar.ErrMemberNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingService_MyBookingsAndYearCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	f.book(t, uta, 0, "08:00", "09:00")
	f.book(t, uta, 1, "20:00", "")

	page, err := f.booking.MyBookings(ctx, uta, 1, 2)
	if err != nil {
		t.Fatalf("my bookings: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || !page.HasNext {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Time != "08:00" {
		t.Fatalf("bookings must be ordered by time, got %+v", page.Items)
	}

	n, err := f.booking.YearCount(ctx, uta, 2025)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 bookings in 2025, got %d %v", n, err)
	}
	if n, _ := f.booking.YearCount(ctx, uta, 2024); n != 0 {
		t.Fatalf("expected nothing in 2024, got %d", n)
	}
	if _, err := f.booking.YearCount(ctx, uta, 12); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBookingService_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	f.mr.Close()

	_, err := f.booking.Day(context.Background(), uta, monday)
	if !errors.Is(err, calendar.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestAdminService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)

	if _, err := f.admin.AddRule(ctx, uta, RuleInput{Courts: []int{0}, Weekday: time.Monday, From: "08:00", To: "09:00"}); !errors.Is(err, calendar.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, err := f.admin.SetMaxHours(ctx, uta, 4); !errors.Is(err, calendar.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, err := f.admin.ToggleManualBlock(ctx, uta, monday, 0, "08:00"); !errors.Is(err, calendar.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestAdminService_RulesLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	added, err := f.admin.AddRule(ctx, admin, RuleInput{Courts: []int{0, 2, 2}, Weekday: time.Wednesday, From: "10:00", To: "12:00"})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if len(added) != 2 || added[0].Court != 0 || added[1].Court != 2 {
		t.Fatalf("expected one rule per distinct court, got %+v", added)
	}

	rules, _ := f.admin.ListRules(ctx, admin)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	if _, err := f.admin.AddRule(ctx, admin, RuleInput{Weekday: time.Wednesday, From: "10:00", To: "12:00"}); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("no courts must fail, got %v", err)
	}
	if _, err := f.admin.AddRule(ctx, admin, RuleInput{Courts: []int{1}, Weekday: time.Wednesday, From: "12:00", To: "10:00"}); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("reversed range must fail, got %v", err)
	}

	if err := f.admin.DeleteRule(ctx, admin, added[0].ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	if err := f.admin.DeleteRule(ctx, admin, added[0].ID); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("second delete must fail, got %v", err)
	}

	// свежий клуб поднимается из БД
	fresh := calendar.NewClub(calendar.DefaultCourts)
	if err := LoadClub(ctx, fresh, f.rules, f.settings, time.Second); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if got := fresh.Rules(); len(got) != 1 || got[0].ID != added[1].ID {
		t.Fatalf("unexpected reloaded rules %+v", got)
	}
	if countEvents(t, f.gdb, model.EventTypeRuleAdded) != 1 || countEvents(t, f.gdb, model.EventTypeRuleDeleted) != 1 {
		t.Fatalf("rule changes must be audited")
	}
}

func TestAdminService_RejectOverlappingRules(t *testing.T) {
	f := newFixture(t, calendar.WithRejectOverlaps(true))
	ctx := context.Background()
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	if _, err := f.admin.AddRule(ctx, admin, RuleInput{Courts: []int{1}, Weekday: time.Friday, From: "18:00", To: "20:00"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	_, err := f.admin.AddRule(ctx, admin, RuleInput{Courts: []int{0, 1}, Weekday: time.Friday, From: "19:00", To: "21:00"})
	if !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("expected overlap rejection, got %v", err)
	}
	if rows, _ := f.rules.List(ctx); len(rows) != 1 {
		t.Fatalf("rejected batch must not be stored, got %d rows", len(rows))
	}
}

func TestAdminService_MaxHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	h, err := f.admin.SetMaxHours(ctx, admin, 3.3)
	if err != nil || h != 3.5 {
		t.Fatalf("expected 3.5, got %v %v", h, err)
	}
	h, err = f.admin.AdjustMaxHours(ctx, admin, -0.5)
	if err != nil || h != 3 {
		t.Fatalf("expected 3, got %v %v", h, err)
	}
	if h, _ := f.admin.SetMaxHours(ctx, admin, 100); h != calendar.MaxMaxHoursPerDay {
		t.Fatalf("expected clamp to max, got %v", h)
	}
	if _, err := f.admin.AdjustMaxHours(ctx, admin, -5); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	value, ok, err := f.settings.Get(ctx, model.SettingMaxHoursPerDay)
	if err != nil || !ok || value != "3.0" {
		t.Fatalf("unexpected stored value %q %v %v", value, ok, err)
	}

	fresh := calendar.NewClub(calendar.DefaultCourts)
	if err := LoadClub(ctx, fresh, f.rules, f.settings, time.Second); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if fresh.MaxHours() != 3 {
		t.Fatalf("expected 3 after reload, got %v", fresh.MaxHours())
	}
	if !f.pub.published("quota.changed") {
		t.Fatalf("quota.changed was not published")
	}
}

func TestLoadClub_FallsBackOnBadSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.settings.Upsert(ctx, model.SettingMaxHoursPerDay, "lots", nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	club := calendar.NewClub(calendar.DefaultCourts, calendar.WithMaxHours(6))
	if err := LoadClub(ctx, club, f.rules, f.settings, time.Second); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if club.MaxHours() != calendar.DefaultMaxHoursPerDay {
		t.Fatalf("expected default cap, got %v", club.MaxHours())
	}
}

func TestAdminService_ToggleManualBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uta := f.member(t, "Uta", false, model.UserStatusApproved)
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	blocked, err := f.admin.ToggleManualBlock(ctx, admin, monday, 2, "12:00")
	if err != nil || !blocked {
		t.Fatalf("expected block, got %v %v", blocked, err)
	}
	c := f.cell(t, uta, 2, "12:00")
	if c.State != calendar.SlotBlocked || !c.Manual || c.Reason != calendar.ReasonManual {
		t.Fatalf("unexpected cell %+v", c)
	}
	if _, err := f.booking.Press(ctx, uta, monday, 2, "12:00"); !errors.Is(err, calendar.ErrPermission) {
		t.Fatalf("expected blocked slot, got %v", err)
	}

	blocked, err = f.admin.ToggleManualBlock(ctx, admin, monday, 2, "12:00")
	if err != nil || blocked {
		t.Fatalf("expected unblock, got %v %v", blocked, err)
	}
	if c := f.cell(t, uta, 2, "12:00"); c.State != calendar.SlotFree {
		t.Fatalf("slot must be free again, got %+v", c)
	}

	if _, err := f.admin.AddRule(ctx, admin, RuleInput{Courts: []int{2}, Weekday: time.Monday, From: "14:00", To: "15:00"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if _, err := f.admin.ToggleManualBlock(ctx, admin, monday, 2, "14:30"); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("weekly blocked slot cannot be toggled, got %v", err)
	}
	if _, err := f.admin.ToggleManualBlock(ctx, admin, monday, 5, "12:00"); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("unknown court must fail, got %v", err)
	}
	if countEvents(t, f.gdb, model.EventTypeManualBlockToggled) != 2 {
		t.Fatalf("toggles must be audited")
	}
}

func TestAdminService_Members(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "Admin", true, model.UserStatusApproved)

	m, err := f.admin.Register(ctx, "  Paul   Panzer ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if m.Name != "Paul Panzer" || m.Status != calendar.MemberPending {
		t.Fatalf("unexpected member %+v", m)
	}
	if _, err := f.admin.Register(ctx, "Paul Panzer"); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("duplicate name must fail, got %v", err)
	}

	page, err := f.admin.ListUsers(ctx, admin, "pending", 1, 10)
	if err != nil || page.Total != 1 || page.Items[0].ID != m.ID {
		t.Fatalf("unexpected pending list %+v %v", page, err)
	}

	if err := f.admin.SetUserStatus(ctx, admin, m.ID, "approved"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.booking.Authenticate(ctx, m.ID); err != nil {
		t.Fatalf("approved member must pass: %v", err)
	}
	if err := f.admin.SetUserStatus(ctx, admin, m.ID, "sleeping"); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("unknown status must fail, got %v", err)
	}
	if err := f.admin.SetUserStatus(ctx, admin, admin.UserID, "blocked"); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("admin cannot block themselves, got %v", err)
	}

	events, err := f.admin.ListEvents(ctx, admin, string(model.EventTypeMemberStatusChanged), 1, 10)
	if err != nil || events.Total != 1 || events.Items[0].Details["status"] != "approved" {
		t.Fatalf("unexpected events %+v %v", events, err)
	}
}

func TestAdminService_BootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.admin.BootstrapAdmin(ctx, "Root")
	if err != nil || !m.IsAdmin || m.Status != calendar.MemberApproved {
		t.Fatalf("unexpected admin %+v %v", m, err)
	}
	again, err := f.admin.BootstrapAdmin(ctx, "Root")
	if err != nil || again.ID != m.ID {
		t.Fatalf("bootstrap must be idempotent, got %+v %v", again, err)
	}

	if _, err := f.admin.Register(ctx, "Uta"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.admin.BootstrapAdmin(ctx, "Uta"); !errors.Is(err, calendar.ErrValidation) {
		t.Fatalf("regular member cannot be promoted, got %v", err)
	}
}
