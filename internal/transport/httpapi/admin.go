package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/service"
)

type ruleRequest struct {
	Courts  []int  `json:"courts" validate:"required,min=1,dive,gte=0"`
	Weekday *int   `json:"weekday" validate:"required,gte=0,lte=6"`
	From    string `json:"from" validate:"required,hhmm"`
	To      string `json:"to" validate:"required,hhmm"`
	Reason  string `json:"reason" validate:"max=200"`
}

// Ровно одно из полей: новое значение или шаг редактора.
type quotaRequest struct {
	MaxHours *float64 `json:"max_hours" validate:"required_without=Delta,excluded_with=Delta"`
	Delta    *float64 `json:"delta" validate:"required_without=MaxHours"`
}

type manualBlockRequest struct {
	Court *int   `json:"court" validate:"required,gte=0"`
	Time  string `json:"time" validate:"required,slot"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved blocked"`
}

// GET /v1/admin/rules
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.admin.ListRules(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// POST /v1/admin/rules
func (h *Handler) AddRule(c *gin.Context) {
	var in ruleRequest
	if !bindJSON(c, &in) {
		return
	}
	added, err := h.admin.AddRule(c.Request.Context(), actorFrom(c), service.RuleInput{
		Courts:  in.Courts,
		Weekday: time.Weekday(*in.Weekday),
		From:    in.From,
		To:      in.To,
		Reason:  in.Reason,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rules": added})
}

// DELETE /v1/admin/rules/:id
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.admin.DeleteRule(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/admin/quota
func (h *Handler) GetQuota(c *gin.Context) {
	hours, err := h.admin.MaxHours(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"max_hours": hours,
		"min":       calendar.MinMaxHoursPerDay,
		"max":       calendar.MaxMaxHoursPerDay,
		"step":      calendar.MaxHoursStep,
	})
}

// PUT /v1/admin/quota {max_hours} | {delta}
func (h *Handler) SetQuota(c *gin.Context) {
	var in quotaRequest
	if !bindJSON(c, &in) {
		return
	}
	var (
		hours float64
		err   error
	)
	if in.MaxHours != nil {
		hours, err = h.admin.SetMaxHours(c.Request.Context(), actorFrom(c), *in.MaxHours)
	} else {
		hours, err = h.admin.AdjustMaxHours(c.Request.Context(), actorFrom(c), *in.Delta)
	}
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"max_hours": hours})
}

// POST /v1/admin/days/:date/manual-blocks
func (h *Handler) ToggleManualBlock(c *gin.Context) {
	day, ok := dayParam(c)
	if !ok {
		return
	}
	var in manualBlockRequest
	if !bindJSON(c, &in) {
		return
	}
	blocked, err := h.admin.ToggleManualBlock(c.Request.Context(), actorFrom(c), day, *in.Court, in.Time)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"court": *in.Court, "date": day, "time": in.Time, "blocked": blocked})
}

// GET /v1/admin/users?status=pending&page=1
func (h *Handler) ListUsers(c *gin.Context) {
	page, size := pageParams(c)
	res, err := h.admin.ListUsers(c.Request.Context(), actorFrom(c), c.Query("status"), page, size)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PUT /v1/admin/users/:id/status
func (h *Handler) SetUserStatus(c *gin.Context) {
	var in statusRequest
	if !bindJSON(c, &in) {
		return
	}
	if err := h.admin.SetUserStatus(c.Request.Context(), actorFrom(c), c.Param("id"), in.Status); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": in.Status})
}

// GET /v1/admin/events?type=booking_created&page=1
func (h *Handler) ListEvents(c *gin.Context) {
	page, size := pageParams(c)
	res, err := h.admin.ListEvents(c.Request.Context(), actorFrom(c), c.Query("type"), page, size)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}
