package calendar

import (
	"sync"
)

// Club хранит общую для всех запросов конфигурацию клуба: корты, недельные
// правила и дневной лимит. Админ меняет её через методы, читатели получают копии.
type Club struct {
	mu             sync.RWMutex
	courts         Courts
	rules          []WeeklyRule
	maxHours       float64
	rejectOverlaps bool
}

// ClubOption настраивает Club.
type ClubOption func(*Club)

// WithRejectOverlaps: AddRules отклоняет правила, пересекающиеся с
// существующими на том же корте и дне недели.
func WithRejectOverlaps(reject bool) ClubOption {
	return func(c *Club) { c.rejectOverlaps = reject }
}

// WithMaxHours задаёт начальный дневной лимит (с ограничением).
func WithMaxHours(h float64) ClubOption {
	return func(c *Club) { c.maxHours = ClampMaxHours(h) }
}

func NewClub(courts Courts, opts ...ClubOption) *Club {
	if len(courts) == 0 {
		courts = DefaultCourts
	}
	c := &Club{
		courts:   append(Courts(nil), courts...),
		maxHours: DefaultMaxHoursPerDay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Club) Courts() Courts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(Courts(nil), c.courts...)
}

// Rules: недельные правила в порядке хранения.
func (c *Club) Rules() []WeeklyRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]WeeklyRule(nil), c.rules...)
}

func (c *Club) RejectOverlaps() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rejectOverlaps
}

// ReplaceRules заменяет весь набор правил, например после перечитывания из БД.
// Невалидные правила отбрасываются и возвращаются как skipped.
func (c *Club) ReplaceRules(rules []WeeklyRule) (skipped []WeeklyRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]WeeklyRule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(c.courts); err != nil {
			skipped = append(skipped, r)
			continue
		}
		kept = append(kept, r)
	}
	c.rules = kept
	return skipped
}

// CheckRules проверяет кандидатов без сохранения. При запрете пересечений
// кандидат не должен пересекаться ни с сохранённым правилом, ни с другим кандидатом.
func (c *Club) CheckRules(candidates []WeeklyRule) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkLocked(candidates)
}

func (c *Club) checkLocked(candidates []WeeklyRule) error {
	if len(candidates) == 0 {
		return Validationf("at least one court must be selected")
	}
	seen := make([]WeeklyRule, 0, len(c.rules)+len(candidates))
	seen = append(seen, c.rules...)
	for _, r := range candidates {
		if err := r.Validate(c.courts); err != nil {
			return err
		}
		if c.rejectOverlaps {
			if other, ok := OverlappingRule(seen, r); ok {
				return Validationf("%s %s-%s overlaps rule %s-%s",
					c.courts.Name(r.Court), r.From, r.To, other.From, other.To)
			}
		}
		seen = append(seen, r)
	}
	return nil
}

// AddRules проверяет и добавляет кандидатов атомарно.
func (c *Club) AddRules(candidates []WeeklyRule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(candidates); err != nil {
		return err
	}
	c.rules = append(c.rules, candidates...)
	return nil
}

// RemoveRule удаляет правило и сообщает, было ли оно.
func (c *Club) RemoveRule(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.rules {
		if r.ID == id {
			c.rules = append(c.rules[:i:i], c.rules[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Club) MaxHours() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxHours
}

// SetMaxHours сохраняет лимит в границах и возвращает его.
func (c *Club) SetMaxHours(h float64) float64 {
	h = ClampMaxHours(h)
	c.mu.Lock()
	c.maxHours = h
	c.mu.Unlock()
	return h
}

// BlockIndex строит индекс по текущим правилам и переданным ручным блокировкам.
func (c *Club) BlockIndex(manual []ManualBlock) *BlockIndex {
	return NewBlockIndex(c.Rules(), manual)
}
