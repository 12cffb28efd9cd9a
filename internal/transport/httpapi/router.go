// Package httpapi: REST API для бронирования и администрирования.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/court-reservation/internal/auth"
	"github.com/Leganyst/court-reservation/internal/service"
)

type Handler struct {
	booking *service.BookingService
	admin   *service.AdminService
	issuer  *auth.Issuer
}

func NewHandler(booking *service.BookingService, admin *service.AdminService, issuer *auth.Issuer) *Handler {
	return &Handler{booking: booking, admin: admin, issuer: issuer}
}

// NewRouter собирает gin-роутер со всеми маршрутами /v1.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.POST("/auth/register", h.Register)

	secured := v1.Group("")
	secured.Use(JWTAuth(h.issuer, h.booking))
	{
		secured.GET("/days/:date", h.Day)
		secured.POST("/days/:date/press", h.Press)

		secured.GET("/pending", h.GetPending)
		secured.POST("/pending/confirm", h.Confirm)
		secured.POST("/pending/delete", h.ConfirmDelete)
		secured.DELETE("/pending", h.Cancel)

		secured.GET("/me/bookings", h.MyBookings)
		secured.GET("/me/stats", h.MyStats)
	}

	admin := secured.Group("/admin")
	admin.Use(RequireAdmin())
	{
		admin.GET("/rules", h.ListRules)
		admin.POST("/rules", h.AddRule)
		admin.DELETE("/rules/:id", h.DeleteRule)

		admin.GET("/quota", h.GetQuota)
		admin.PUT("/quota", h.SetQuota)

		admin.POST("/days/:date/manual-blocks", h.ToggleManualBlock)

		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/status", h.SetUserStatus)

		admin.GET("/events", h.ListEvents)
	}
	return r
}
