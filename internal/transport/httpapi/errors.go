package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/court-reservation/internal/calendar"
)

func statusFor(kind calendar.ErrorKind) int {
	switch kind {
	case calendar.KindValidation:
		return http.StatusBadRequest
	case calendar.KindPermission:
		return http.StatusForbidden
	case calendar.KindQuota:
		return http.StatusUnprocessableEntity
	case calendar.KindConflict:
		return http.StatusConflict
	case calendar.KindTransport:
		return http.StatusBadGateway
	case calendar.KindNotice:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает ошибкой ядра; extra дописывается в тело (например,
// свежая сетка дня при конфликте).
func writeError(c *gin.Context, err error, extra gin.H) {
	kind := calendar.Kind(err)
	body := gin.H{"kind": kind.String()}

	var (
		qe      *calendar.QuotaError
		blocked *calendar.BlockedError
	)
	switch {
	case kind == calendar.KindInternal:
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		body["error"] = "internal error"
	case kind == calendar.KindNotice && errors.As(err, &blocked):
		body["notice"] = blocked.Reason
	case errors.As(err, &qe):
		body["error"] = err.Error()
		body["quota"] = gin.H{"max_hours": qe.Cap, "booked_hours": qe.Booked, "requested_hours": qe.Requested}
	default:
		body["error"] = err.Error()
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(statusFor(kind), body)
}
