package calendar

import (
	"sort"
	"time"

	"github.com/Leganyst/court-reservation/internal/utils"
)

const (
	ReasonManual    = "manually blocked"
	ReasonAutomatic = "automatically blocked"
)

// WeeklyRule закрывает полуинтервал [From, To) на одном корте каждую неделю.
type WeeklyRule struct {
	ID      string       `json:"id"`
	Court   int          `json:"court"`
	Weekday time.Weekday `json:"weekday"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Reason  string       `json:"reason,omitempty"`
}

// Validate проверяет правило по кортам клуба.
func (r WeeklyRule) Validate(courts Courts) error {
	if !courts.Valid(r.Court) {
		return Validationf("unknown court %d", r.Court)
	}
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return Validationf("weekday %d out of range 0..6", r.Weekday)
	}
	from, err := ParseTimeOfDay(r.From)
	if err != nil {
		return err
	}
	to, err := ParseTimeOfDay(r.To)
	if err != nil {
		return err
	}
	if to <= from {
		return Validationf("end %s must be after start %s", r.To, r.From)
	}
	return nil
}

// Covers: правило закрывает время t дня недели на корте.
// Время в HH:MM фиксированной ширины, строки сравниваются как часы.
func (r WeeklyRule) Covers(court int, weekday time.Weekday, t string) bool {
	return r.Court == court && r.Weekday == weekday && t >= r.From && t < r.To
}

func (r WeeklyRule) span() utils.TimeRange {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	tr, err := utils.ClockRange(base, r.From, r.To)
	if err != nil {
		return utils.TimeRange{}
	}
	return tr
}

// OverlappingRule: первое правило с тем же кортом и днём недели,
// пересекающееся с candidate по времени.
func OverlappingRule(rules []WeeklyRule, candidate WeeklyRule) (WeeklyRule, bool) {
	span := candidate.span()
	for _, r := range rules {
		if r.Court != candidate.Court || r.Weekday != candidate.Weekday {
			continue
		}
		if ok, _ := utils.HasOverlap(span, []utils.TimeRange{r.span()}, false); ok {
			return r, true
		}
	}
	return WeeklyRule{}, false
}

// ManualBlock закрывает один слот на одну дату.
type ManualBlock struct {
	Court int    `json:"court"`
	Day   Day    `json:"day"`
	Time  string `json:"time"`
}

type slotKey struct {
	court int
	day   string
	time  string
}

func coordKey(court int, day Day, t string) slotKey {
	return slotKey{court: court, day: day.Key(), time: t}
}

// BlockIndex отвечает, закрыт ли слот и почему.
type BlockIndex struct {
	rules  []WeeklyRule
	manual map[slotKey]ManualBlock
}

func NewBlockIndex(rules []WeeklyRule, manual []ManualBlock) *BlockIndex {
	ix := &BlockIndex{
		rules:  append([]WeeklyRule(nil), rules...),
		manual: make(map[slotKey]ManualBlock, len(manual)),
	}
	for _, b := range manual {
		ix.manual[coordKey(b.Court, b.Day, b.Time)] = b
	}
	return ix
}

// WeeklyRuleFor: первое по порядку хранения правило, закрывающее слот.
func (ix *BlockIndex) WeeklyRuleFor(court int, weekday time.Weekday, t string) (WeeklyRule, bool) {
	for _, r := range ix.rules {
		if r.Covers(court, weekday, t) {
			return r, true
		}
	}
	return WeeklyRule{}, false
}

func (ix *BlockIndex) IsWeeklyBlocked(court int, weekday time.Weekday, t string) bool {
	_, ok := ix.WeeklyRuleFor(court, weekday, t)
	return ok
}

func (ix *BlockIndex) IsManuallyBlocked(court int, day Day, t string) bool {
	_, ok := ix.manual[coordKey(court, day, t)]
	return ok
}

func (ix *BlockIndex) IsBlocked(court int, day Day, t string) bool {
	return ix.IsManuallyBlocked(court, day, t) || ix.IsWeeklyBlocked(court, day.Weekday(), t)
}

// BlockReason: причина из правила, если она есть, иначе ручная или
// автоматическая блокировка.
func (ix *BlockIndex) BlockReason(court int, day Day, t string) (string, bool) {
	rule, weekly := ix.WeeklyRuleFor(court, day.Weekday(), t)
	switch {
	case weekly && rule.Reason != "":
		return rule.Reason, true
	case ix.IsManuallyBlocked(court, day, t):
		return ReasonManual, true
	case weekly:
		return ReasonAutomatic, true
	default:
		return "", false
	}
}

// ToggleManual переключает ручную блокировку и возвращает новое состояние.
// Слоты под недельным правилом не переключаются.
func (ix *BlockIndex) ToggleManual(b ManualBlock) (bool, error) {
	if ix.IsWeeklyBlocked(b.Court, b.Day.Weekday(), b.Time) {
		return false, Validationf("%s is blocked by a weekly rule", b.Time)
	}
	key := coordKey(b.Court, b.Day, b.Time)
	if _, ok := ix.manual[key]; ok {
		delete(ix.manual, key)
		return false, nil
	}
	ix.manual[key] = b
	return true, nil
}

// SetManual ставит или снимает ручную блокировку без проверки недельных
// правил. Используется при загрузке сохранённых блокировок.
func (ix *BlockIndex) SetManual(b ManualBlock, blocked bool) {
	key := coordKey(b.Court, b.Day, b.Time)
	if blocked {
		ix.manual[key] = b
		return
	}
	delete(ix.manual, key)
}

// ManualBlocks: ручные блокировки дня по корту и времени.
func (ix *BlockIndex) ManualBlocks(day Day) []ManualBlock {
	var out []ManualBlock
	for _, b := range ix.manual {
		if b.Day.Equal(day) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Court != out[j].Court {
			return out[i].Court < out[j].Court
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// Rules: копия недельных правил в порядке хранения.
func (ix *BlockIndex) Rules() []WeeklyRule {
	return append([]WeeklyRule(nil), ix.rules...)
}
