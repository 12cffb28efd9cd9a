package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/validate"
)

type pressRequest struct {
	Court *int   `json:"court" validate:"required,gte=0"`
	Time  string `json:"time" validate:"required,slot"`
}

type confirmRequest struct {
	End      string `json:"end"`
	CoPlayer string `json:"co_player" validate:"max=100"`
}

// bindJSON декодирует тело и прогоняет его через validator.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, calendar.Validationf("bad request body: %v", err), nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(c, err, nil)
		return false
	}
	return true
}

func dayParam(c *gin.Context) (calendar.Day, bool) {
	day, err := calendar.ParseDay(c.Param("date"))
	if err != nil {
		writeError(c, err, nil)
		return calendar.Day{}, false
	}
	return day, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(calendar.DefaultPageSize)))
	return calendar.NormalizePage(page, size)
}

// GET /v1/days/:date
func (h *Handler) Day(c *gin.Context) {
	day, ok := dayParam(c)
	if !ok {
		return
	}
	res, err := h.booking.Day(c.Request.Context(), actorFrom(c), day)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /v1/days/:date/press
func (h *Handler) Press(c *gin.Context) {
	day, ok := dayParam(c)
	if !ok {
		return
	}
	var in pressRequest
	if !bindJSON(c, &in) {
		return
	}
	dec, err := h.booking.Press(c.Request.Context(), actorFrom(c), day, *in.Court, in.Time)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, dec)
}

// GET /v1/pending
func (h *Handler) GetPending(c *gin.Context) {
	p, err := h.booking.Pending(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if p == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, p)
}

// conflictBody подкладывает к конфликту свежую сетку дня, чтобы клиент
// перерисовал её без лишнего запроса.
func (h *Handler) conflictBody(c *gin.Context, day calendar.Day) gin.H {
	if day.IsZero() {
		return nil
	}
	res, err := h.booking.Day(c.Request.Context(), actorFrom(c), day)
	if err != nil {
		return nil
	}
	return gin.H{"day": res}
}

func (h *Handler) pendingDay(c *gin.Context) calendar.Day {
	p, err := h.booking.Pending(c.Request.Context(), actorFrom(c))
	if err != nil || p == nil {
		return calendar.Day{}
	}
	return p.Day
}

// POST /v1/pending/confirm
func (h *Handler) Confirm(c *gin.Context) {
	var in confirmRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &in) {
		return
	}
	day := h.pendingDay(c)
	created, err := h.booking.Confirm(c.Request.Context(), actorFrom(c), calendar.ConfirmRequest{End: in.End, CoPlayer: in.CoPlayer})
	if err != nil {
		var extra gin.H
		if calendar.Kind(err) == calendar.KindConflict {
			extra = h.conflictBody(c, day)
		}
		writeError(c, err, extra)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bookings": created})
}

// POST /v1/pending/delete
func (h *Handler) ConfirmDelete(c *gin.Context) {
	day := h.pendingDay(c)
	deleted, err := h.booking.ConfirmDelete(c.Request.Context(), actorFrom(c))
	if err != nil {
		var extra gin.H
		if calendar.Kind(err) == calendar.KindConflict {
			extra = h.conflictBody(c, day)
		}
		writeError(c, err, extra)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// DELETE /v1/pending
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.booking.Cancel(c.Request.Context(), actorFrom(c)); err != nil {
		writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/me/bookings?page=1&page_size=10
func (h *Handler) MyBookings(c *gin.Context) {
	page, size := pageParams(c)
	res, err := h.booking.MyBookings(c.Request.Context(), actorFrom(c), page, size)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /v1/me/stats?year=2025
func (h *Handler) MyStats(c *gin.Context) {
	year := time.Now().Year()
	if y := c.Query("year"); y != "" {
		v, err := strconv.Atoi(y)
		if err != nil {
			writeError(c, calendar.Validationf("year must be a number"), nil)
			return
		}
		year = v
	}
	n, err := h.booking.YearCount(c.Request.Context(), actorFrom(c), year)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "bookings": n})
}
