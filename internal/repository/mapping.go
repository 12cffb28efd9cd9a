package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/validate"
)

// Строки из БД проходят через эти DTO прежде чем попасть в ядро.

type bookingRow struct {
	Court  int    `json:"court_index" validate:"gte=0"`
	Date   string `json:"date_key" validate:"required,datekey"`
	Time   string `json:"slot_time" validate:"required,slot"`
	UserID string `json:"user_id" validate:"required,uuid"`
}

type ruleRow struct {
	Court   int    `json:"court_index" validate:"gte=0"`
	Weekday int    `json:"weekday" validate:"gte=0,lte=6"`
	From    string `json:"from_time" validate:"required,hhmm"`
	To      string `json:"to_time" validate:"required,hhmm"`
}

type memberRow struct {
	ID     string `json:"id" validate:"required,uuid"`
	Name   string `json:"name" validate:"required"`
	Status string `json:"status" validate:"oneof=pending approved blocked"`
}

func ToCoreBooking(b model.Booking) (calendar.Booking, error) {
	row := bookingRow{Court: b.CourtIndex, Date: b.DateKey, Time: b.SlotTime, UserID: b.UserID.String()}
	if b.UserID == uuid.Nil {
		row.UserID = ""
	}
	if err := validate.Struct(row); err != nil {
		return calendar.Booking{}, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	day, _ := calendar.ParseDay(b.DateKey)
	return calendar.Booking{
		ID:       b.ID.String(),
		Court:    b.CourtIndex,
		Day:      day,
		Time:     b.SlotTime,
		UserID:   b.UserID.String(),
		UserName: b.UserName,
		CoPlayer: b.Player2,
	}, nil
}

// ToCoreBookings переводит строки и возвращает отброшенные с причиной.
func ToCoreBookings(rows []model.Booking) ([]calendar.Booking, []error) {
	out := make([]calendar.Booking, 0, len(rows))
	var skipped []error
	for _, r := range rows {
		b, err := ToCoreBooking(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		out = append(out, b)
	}
	return out, skipped
}

func FromCoreBooking(b calendar.Booking) (model.Booking, error) {
	uid, err := uuid.Parse(b.UserID)
	if err != nil {
		return model.Booking{}, calendar.Validationf("bad user id %q", b.UserID)
	}
	return model.Booking{
		CourtIndex: b.Court,
		DateKey:    b.Day.Key(),
		SlotTime:   b.Time,
		UserID:     uid,
		UserName:   b.UserName,
		Player2:    b.CoPlayer,
	}, nil
}

func FromCoreBookings(bs []calendar.Booking) ([]model.Booking, error) {
	out := make([]model.Booking, 0, len(bs))
	for _, b := range bs {
		m, err := FromCoreBooking(b)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func ToCoreRule(w model.WeeklyBlock) (calendar.WeeklyRule, error) {
	row := ruleRow{Court: w.CourtIndex, Weekday: w.Weekday, From: w.FromTime, To: w.ToTime}
	if err := validate.Struct(row); err != nil {
		return calendar.WeeklyRule{}, fmt.Errorf("weekly block %s: %w", w.ID, err)
	}
	return calendar.WeeklyRule{
		ID:      w.ID.String(),
		Court:   w.CourtIndex,
		Weekday: time.Weekday(w.Weekday),
		From:    w.FromTime,
		To:      w.ToTime,
		Reason:  w.Reason,
	}, nil
}

func ToCoreRules(rows []model.WeeklyBlock) ([]calendar.WeeklyRule, []error) {
	out := make([]calendar.WeeklyRule, 0, len(rows))
	var skipped []error
	for _, r := range rows {
		rule, err := ToCoreRule(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		out = append(out, rule)
	}
	return out, skipped
}

func FromCoreRule(r calendar.WeeklyRule) model.WeeklyBlock {
	w := model.WeeklyBlock{
		CourtIndex: r.Court,
		Weekday:    int(r.Weekday),
		FromTime:   r.From,
		ToTime:     r.To,
		Reason:     r.Reason,
	}
	if id, err := uuid.Parse(r.ID); err == nil {
		w.ID = id
	}
	return w
}

func ToMember(u model.User) (*calendar.Member, error) {
	row := memberRow{ID: u.ID.String(), Name: u.Name, Status: string(u.Status)}
	if err := validate.Struct(row); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return &calendar.Member{
		ID:      u.ID.String(),
		Name:    u.Name,
		Status:  calendar.MemberStatus(u.Status),
		IsAdmin: u.IsAdmin,
	}, nil
}

// NewAuditEvent собирает событие аудита; details сериализуются в JSON.
func NewAuditEvent(eventType model.EventType, actorID string, details any) (*model.Event, error) {
	e := &model.Event{EventType: eventType}
	if uid, err := uuid.Parse(actorID); err == nil {
		e.UserID = &uid
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("marshal audit details: %w", err)
		}
		e.Details = datatypes.JSON(b)
	}
	return e, nil
}
