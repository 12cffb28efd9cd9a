package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name string `json:"name" validate:"required,min=2,max=64"`
}

// POST /v1/auth/register
// Новый участник ждёт одобрения; токен начнёт работать после него.
func (h *Handler) Register(c *gin.Context) {
	var in registerRequest
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.admin.Register(c.Request.Context(), in.Name)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	token, err := h.issuer.CreateAccessToken(m.ID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": m, "access_token": token})
}
