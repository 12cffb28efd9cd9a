package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/mq"
	"github.com/Leganyst/court-reservation/internal/repository"
)

// AdminService: настройки клуба. Все методы, кроме Register и
// BootstrapAdmin, доступны только администратору.
type AdminService struct {
	club      *calendar.Club
	rules     repository.WeeklyBlockRepository
	settings  repository.SettingRepository
	users     repository.UserRepository
	events    repository.EventRepository
	manual    ManualBlockStore
	publisher mq.EventPublisher
	timeout   time.Duration

	// изменения правил и квоты идут по одному
	mu sync.Mutex
}

func NewAdminService(
	club *calendar.Club,
	rules repository.WeeklyBlockRepository,
	settings repository.SettingRepository,
	users repository.UserRepository,
	events repository.EventRepository,
	manual ManualBlockStore,
	publisher mq.EventPublisher,
	timeout time.Duration,
) *AdminService {
	return &AdminService{
		club:      club,
		rules:     rules,
		settings:  settings,
		users:     users,
		events:    events,
		manual:    manual,
		publisher: publisher,
		timeout:   timeout,
	}
}

// RuleInput: форма создания правила: одно правило на каждый выбранный корт.
type RuleInput struct {
	Courts  []int
	Weekday time.Weekday
	From    string
	To      string
	Reason  string
}

// ===== Правила =====

func (s *AdminService) ListRules(ctx context.Context, actor calendar.Actor) ([]calendar.WeeklyRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.club.Rules(), nil
}

func (s *AdminService) AddRule(ctx context.Context, actor calendar.Actor, in RuleInput) (added []calendar.WeeklyRule, err error) {
	ctx, span := startSpan(ctx, "AdminService.AddRule", actor,
		attribute.Int("weekday", int(in.Weekday)), attribute.String("from", in.From), attribute.String("to", in.To))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	seen := make(map[int]bool, len(in.Courts))
	candidates := make([]calendar.WeeklyRule, 0, len(in.Courts))
	for _, court := range in.Courts {
		if seen[court] {
			continue
		}
		seen[court] = true
		candidates = append(candidates, calendar.WeeklyRule{
			ID:      uuid.NewString(),
			Court:   court,
			Weekday: in.Weekday,
			From:    strings.TrimSpace(in.From),
			To:      strings.TrimSpace(in.To),
			Reason:  reason,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.club.CheckRules(candidates); err != nil {
		return nil, err
	}

	rows := make([]model.WeeklyBlock, 0, len(candidates))
	for _, r := range candidates {
		rows = append(rows, repository.FromCoreRule(r))
	}
	audit, err := repository.NewAuditEvent(model.EventTypeRuleAdded, actor.UserID, candidates)
	if err != nil {
		return nil, err
	}

	wctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.rules.CreateBatch(wctx, rows, audit); err != nil {
		return nil, storeErr("insert weekly blocks", err)
	}
	if err := s.club.AddRules(candidates); err != nil {
		// в БД правила уже есть, перечитаем всё целиком
		log.Printf("[admin] add rules to club: %v", err)
		s.reloadRules(ctx)
	}

	log.Printf("[admin] %s added %d weekly rule(s) %s %s-%s", actor.UserID, len(candidates), in.Weekday, in.From, in.To)
	mq.Publish(ctx, s.publisher, mq.KeyRuleAdded, candidates)
	return candidates, nil
}

func (s *AdminService) DeleteRule(ctx context.Context, actor calendar.Actor, id string) (err error) {
	ctx, span := startSpan(ctx, "AdminService.DeleteRule", actor, attribute.String("rule.id", id))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return calendar.Validationf("bad rule id %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	audit, err := repository.NewAuditEvent(model.EventTypeRuleDeleted, actor.UserID, map[string]string{"rule_id": id})
	if err != nil {
		return err
	}
	wctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.rules.Delete(wctx, id, audit)
	if err != nil {
		return storeErr("delete weekly block", err)
	}
	if !ok {
		return calendar.Validationf("rule %s not found", id)
	}
	s.club.RemoveRule(id)

	log.Printf("[admin] %s deleted weekly rule %s", actor.UserID, id)
	mq.Publish(ctx, s.publisher, mq.KeyRuleDeleted, map[string]string{"rule_id": id})
	return nil
}

func (s *AdminService) reloadRules(ctx context.Context) {
	if err := loadRules(ctx, s.club, s.rules, s.timeout); err != nil {
		log.Printf("[admin] reload rules: %v", err)
	}
}

// ===== Квота =====

func (s *AdminService) MaxHours(ctx context.Context, actor calendar.Actor) (float64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	return s.club.MaxHours(), nil
}

// SetMaxHours сохраняет дневной лимит (с округлением до шага и в границах).
func (s *AdminService) SetMaxHours(ctx context.Context, actor calendar.Actor, hours float64) (float64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeMaxHours(ctx, actor, calendar.ClampMaxHours(hours))
}

// AdjustMaxHours: кнопки ±0.5 в редакторе лимита.
func (s *AdminService) AdjustMaxHours(ctx context.Context, actor calendar.Actor, delta float64) (float64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeMaxHours(ctx, actor, calendar.AdjustMaxHours(s.club.MaxHours(), delta))
}

func (s *AdminService) storeMaxHours(ctx context.Context, actor calendar.Actor, hours float64) (_ float64, err error) {
	ctx, span := startSpan(ctx, "AdminService.SetMaxHours", actor, attribute.Float64("max_hours", hours))
	defer func() { endSpan(span, err) }()

	value := decimal.NewFromFloat(hours).StringFixed(1)
	audit, err := repository.NewAuditEvent(model.EventTypeQuotaChanged, actor.UserID, map[string]any{
		"from": s.club.MaxHours(),
		"to":   hours,
	})
	if err != nil {
		return 0, err
	}
	wctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.settings.Upsert(wctx, model.SettingMaxHoursPerDay, value, audit); err != nil {
		return 0, storeErr("save max hours", err)
	}
	hours = s.club.SetMaxHours(hours)

	log.Printf("[admin] %s set max hours per day to %s", actor.UserID, value)
	mq.Publish(ctx, s.publisher, mq.KeyQuotaChanged, map[string]float64{"max_hours": hours})
	return hours, nil
}

// ===== Ручные блокировки =====

// ToggleManualBlock переключает ручную блокировку слота и возвращает новое
// состояние. Слоты под недельным правилом не переключаются.
func (s *AdminService) ToggleManualBlock(ctx context.Context, actor calendar.Actor, day calendar.Day, court int, t string) (blocked bool, err error) {
	ctx, span := startSpan(ctx, "AdminService.ToggleManualBlock", actor,
		attribute.String("day", day.Key()), attribute.Int("court", court), attribute.String("time", t))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return false, err
	}
	if day.IsZero() {
		return false, calendar.Validationf("day is required")
	}
	if !s.club.Courts().Valid(court) {
		return false, calendar.Validationf("unknown court %d", court)
	}
	if !calendar.IsGridTime(t) {
		return false, calendar.Validationf("%q is not a slot start", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	manual, err := s.manual.Load(lctx, day)
	if err != nil {
		return false, storeErr("load manual blocks", err)
	}
	b := calendar.ManualBlock{Court: court, Day: day, Time: t}
	blocked, err = s.club.BlockIndex(manual).ToggleManual(b)
	if err != nil {
		return false, err
	}
	if err := s.manual.Set(lctx, b, blocked); err != nil {
		return false, storeErr("save manual block", err)
	}

	s.audit(ctx, model.EventTypeManualBlockToggled, actor, map[string]any{
		"court": court, "date": day.Key(), "time": t, "blocked": blocked,
	})
	log.Printf("[admin] %s set manual block %s %s court %d: %v", actor.UserID, day, t, court, blocked)
	mq.Publish(ctx, s.publisher, mq.KeyManualBlockToggled, map[string]any{
		"court": court, "date": day.Key(), "time": t, "blocked": blocked,
	})
	return blocked, nil
}

// audit пишет событие отдельно от основной записи; ошибка только логируется.
func (s *AdminService) audit(ctx context.Context, eventType model.EventType, actor calendar.Actor, details any) {
	e, err := repository.NewAuditEvent(eventType, actor.UserID, details)
	if err != nil {
		log.Printf("[admin] build audit event: %v", err)
		return
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.events.Create(ctx, e); err != nil {
		log.Printf("[admin] write audit event %s: %v", eventType, err)
	}
}

// ===== Участники =====

// Register заводит участника в статусе pending.
func (s *AdminService) Register(ctx context.Context, name string) (*calendar.Member, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.users.Register(ctx, name, false)
	if err != nil {
		return nil, storeErr("register member", err)
	}
	log.Printf("[admin] member %s registered, waiting for approval", u.ID)
	return repository.ToMember(*u)
}

// BootstrapAdmin создаёт (или находит) одобренного администратора.
func (s *AdminService) BootstrapAdmin(ctx context.Context, name string) (*calendar.Member, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.FindByName(ctx, name)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u, err = s.users.Register(ctx, name, true)
		if err != nil {
			return nil, storeErr("register admin", err)
		}
	case err != nil:
		return nil, storeErr("find admin", err)
	case !u.IsAdmin:
		return nil, calendar.Validationf("member %q exists and is not an admin", name)
	}

	if u.Status != model.UserStatusApproved {
		if err := s.users.SetStatus(ctx, u.ID, model.UserStatusApproved, nil); err != nil {
			return nil, storeErr("approve admin", err)
		}
		u.Status = model.UserStatusApproved
	}
	return repository.ToMember(*u)
}

func (s *AdminService) ListUsers(ctx context.Context, actor calendar.Actor, status string, page, pageSize int) (calendar.Page[calendar.Member], error) {
	if err := requireAdmin(actor); err != nil {
		return calendar.Page[calendar.Member]{}, err
	}
	var st model.UserStatus
	if status != "" {
		ms, err := calendar.ParseMemberStatus(status)
		if err != nil {
			return calendar.Page[calendar.Member]{}, err
		}
		st = model.UserStatus(ms)
	}

	page, pageSize = calendar.NormalizePage(page, pageSize)
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	users, total, err := s.users.List(ctx, st, pageSize, (page-1)*pageSize)
	if err != nil {
		return calendar.Page[calendar.Member]{}, storeErr("list users", err)
	}

	items := make([]calendar.Member, 0, len(users))
	for _, u := range users {
		m, err := repository.ToMember(u)
		if err != nil {
			log.Printf("[admin] skip user row: %v", err)
			continue
		}
		items = append(items, *m)
	}
	return pageOf(items, total, page, pageSize), nil
}

func (s *AdminService) SetUserStatus(ctx context.Context, actor calendar.Actor, id, status string) (err error) {
	ctx, span := startSpan(ctx, "AdminService.SetUserStatus", actor,
		attribute.String("member.id", id), attribute.String("status", status))
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return calendar.Validationf("bad member id %q", id)
	}
	st, err := calendar.ParseMemberStatus(status)
	if err != nil {
		return err
	}
	if id == actor.UserID && st != calendar.MemberApproved {
		return calendar.Validationf("admins cannot lock themselves out")
	}

	audit, err := repository.NewAuditEvent(model.EventTypeMemberStatusChanged, actor.UserID, map[string]string{
		"member_id": id, "status": string(st),
	})
	if err != nil {
		return err
	}
	ctx2, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.users.SetStatus(ctx2, uid, model.UserStatus(st), audit); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return calendar.Validationf("member %s not found", id)
		}
		return storeErr("set member status", err)
	}

	log.Printf("[admin] %s set status of %s to %s", actor.UserID, id, st)
	mq.Publish(ctx, s.publisher, mq.KeyMemberStatus, map[string]string{"member_id": id, "status": string(st)})
	return nil
}

// ===== Журнал =====

// AuditEvent: запись журнала в виде для ответа.
type AuditEvent struct {
	ID        string          `json:"id"`
	Type      model.EventType `json:"type"`
	UserID    string          `json:"user_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Details   map[string]any  `json:"details,omitempty"`
}

func (s *AdminService) ListEvents(ctx context.Context, actor calendar.Actor, eventType string, page, pageSize int) (calendar.Page[AuditEvent], error) {
	if err := requireAdmin(actor); err != nil {
		return calendar.Page[AuditEvent]{}, err
	}
	page, pageSize = calendar.NormalizePage(page, pageSize)
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	events, total, err := s.events.ListRecent(ctx, model.EventType(eventType), pageSize, (page-1)*pageSize)
	if err != nil {
		return calendar.Page[AuditEvent]{}, storeErr("list events", err)
	}

	items := make([]AuditEvent, 0, len(events))
	for _, e := range events {
		items = append(items, toAuditEvent(e))
	}
	return pageOf(items, total, page, pageSize), nil
}

func toAuditEvent(e model.Event) AuditEvent {
	out := AuditEvent{ID: e.ID.String(), Type: e.EventType, CreatedAt: e.CreatedAt}
	if e.UserID != nil {
		out.UserID = e.UserID.String()
	}
	if len(e.Details) > 0 {
		var details any
		if err := json.Unmarshal(e.Details, &details); err != nil {
			log.Printf("[admin] decode details of event %s: %v", e.ID, err)
		} else if m, ok := details.(map[string]any); ok {
			out.Details = m
		} else {
			out.Details = map[string]any{"items": details}
		}
	}
	return out
}

// pageOf собирает страницу, когда срез уже отрезан на стороне БД.
func pageOf[T any](items []T, total int64, page, pageSize int) calendar.Page[T] {
	return calendar.Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  int64(page*pageSize) < total,
		HasPrev:  page > 1,
		Total:    int(total),
	}
}
