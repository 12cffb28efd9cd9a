package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/repository"
)

// LoadClub заполняет клуб из БД при старте: правила и дневной лимит.
// Сбой чтения лимита не фатален, остаётся значение по умолчанию.
func LoadClub(
	ctx context.Context,
	club *calendar.Club,
	rules repository.WeeklyBlockRepository,
	settings repository.SettingRepository,
	timeout time.Duration,
) error {
	if err := loadRules(ctx, club, rules, timeout); err != nil {
		return err
	}

	sctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	value, ok, err := settings.Get(sctx, model.SettingMaxHoursPerDay)
	switch {
	case err != nil:
		log.Printf("[club] load max hours: %v; using %.1f", err, calendar.DefaultMaxHoursPerDay)
		club.SetMaxHours(calendar.DefaultMaxHoursPerDay)
	case !ok:
		club.SetMaxHours(calendar.DefaultMaxHoursPerDay)
	default:
		d, err := decimal.NewFromString(value)
		if err != nil {
			log.Printf("[club] bad max hours %q: %v; using %.1f", value, err, calendar.DefaultMaxHoursPerDay)
			club.SetMaxHours(calendar.DefaultMaxHoursPerDay)
			break
		}
		h, _ := d.Float64()
		club.SetMaxHours(h)
	}

	log.Printf("[club] %d court(s), %d weekly rule(s), max %.1f h per day",
		len(club.Courts()), len(club.Rules()), club.MaxHours())
	return nil
}

func loadRules(ctx context.Context, club *calendar.Club, rules repository.WeeklyBlockRepository, timeout time.Duration) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	rows, err := rules.List(ctx)
	if err != nil {
		return fmt.Errorf("load weekly blocks: %w", err)
	}
	core, skipped := repository.ToCoreRules(rows)
	for _, e := range skipped {
		log.Printf("[club] skip weekly block row: %v", e)
	}
	for _, r := range club.ReplaceRules(core) {
		log.Printf("[club] skip invalid weekly block %s on court %d", r.ID, r.Court)
	}
	return nil
}
