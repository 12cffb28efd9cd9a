package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/obs"
	"github.com/Leganyst/court-reservation/internal/repository"
)

const DefaultStoreTimeout = 5 * time.Second

// ManualBlockStore: хранилище ручных блокировок (Redis).
type ManualBlockStore interface {
	Load(ctx context.Context, day calendar.Day) ([]calendar.ManualBlock, error)
	Set(ctx context.Context, b calendar.ManualBlock, blocked bool) error
}

// PendingStore: хранилище открытых решений участников (Redis).
type PendingStore interface {
	Save(ctx context.Context, userID string, p calendar.Pending) error
	Get(ctx context.Context, userID string) (*calendar.Pending, error)
	Delete(ctx context.Context, userID string) error
}

// storeErr переводит ошибку хранилища в таксономию ядра.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case calendar.Kind(err) != calendar.KindInternal:
		return err
	case errors.Is(err, repository.ErrSlotTaken), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, calendar.ErrConflict)
	default:
		return fmt.Errorf("%w: %s: %v", calendar.ErrTransport, op, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

func startSpan(ctx context.Context, name string, actor calendar.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("actor.id", actor.UserID),
		attribute.Bool("actor.admin", actor.IsAdmin),
	)
	return obs.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, calendar.Kind(err).String())
	}
	span.End()
}

// memberLocks сериализует действия одного участника. Запись удаляется,
// когда её никто не держит и не ждёт.
type memberLocks struct {
	mu    sync.Mutex
	locks map[string]*memberLock
}

type memberLock struct {
	mu   sync.Mutex
	refs int
}

func (l *memberLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*memberLock)
	}
	ml, ok := l.locks[userID]
	if !ok {
		ml = &memberLock{}
		l.locks[userID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *memberLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func requireAdmin(actor calendar.Actor) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin only", calendar.ErrPermission)
	}
	return nil
}
