package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Leganyst/court-reservation/internal/calendar"
)

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// ===== Ручные блокировки =====

// ManualBlockStore хранит ручные блокировки дня как множество "корт|время".
// Ключ живёт ещё сутки после даты и потом удаляется сам.
type ManualBlockStore struct {
	client redis.Cmdable
}

func NewManualBlockStore(client redis.Cmdable) *ManualBlockStore {
	return &ManualBlockStore{client: client}
}

func manualSetKey(day calendar.Day) string {
	return "manual:" + day.Key()
}

func manualMember(court int, t string) string {
	return fmt.Sprintf("%d|%s", court, t)
}

func parseManualMember(day calendar.Day, m string) (calendar.ManualBlock, bool) {
	courtStr, t, ok := strings.Cut(m, "|")
	if !ok {
		return calendar.ManualBlock{}, false
	}
	court, err := strconv.Atoi(courtStr)
	if err != nil || court < 0 || !calendar.IsGridTime(t) {
		return calendar.ManualBlock{}, false
	}
	return calendar.ManualBlock{Court: court, Day: day, Time: t}, true
}

// Load возвращает ручные блокировки даты; мусорные элементы пропускаются.
func (s *ManualBlockStore) Load(ctx context.Context, day calendar.Day) ([]calendar.ManualBlock, error) {
	members, err := s.client.SMembers(ctx, manualSetKey(day)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]calendar.ManualBlock, 0, len(members))
	for _, m := range members {
		if b, ok := parseManualMember(day, m); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// Set ставит или снимает ручную блокировку слота.
func (s *ManualBlockStore) Set(ctx context.Context, b calendar.ManualBlock, blocked bool) error {
	key := manualSetKey(b.Day)
	ttl := time.Until(b.Day.AddDays(2).Time())
	if ttl < time.Hour {
		ttl = time.Hour
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if blocked {
			p.SAdd(ctx, key, manualMember(b.Court, b.Time))
		} else {
			p.SRem(ctx, key, manualMember(b.Court, b.Time))
		}
		p.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// ===== Незавершённые решения =====

// PendingStore хранит открытое решение участника между запросами.
// TTL подчищает брошенные решения.
type PendingStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewPendingStore(client redis.Cmdable, ttl time.Duration) *PendingStore {
	return &PendingStore{client: client, ttl: ttl}
}

func pendingKey(userID string) string {
	return "pending:" + userID
}

func (s *PendingStore) Save(ctx context.Context, userID string, p calendar.Pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pendingKey(userID), data, s.ttl).Err()
}

// Get возвращает nil, если решения нет или оно истекло.
func (s *PendingStore) Get(ctx context.Context, userID string) (*calendar.Pending, error) {
	val, err := s.client.Get(ctx, pendingKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p calendar.Pending
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode pending decision: %w", err)
	}
	return &p, nil
}

func (s *PendingStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, pendingKey(userID)).Err()
}
