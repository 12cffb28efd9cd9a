package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/court-reservation/internal/auth"
	"github.com/Leganyst/court-reservation/internal/calendar"
)

const actorKey = "actor"

// Authenticator допускает участника по id из токена.
type Authenticator interface {
	Authenticate(ctx context.Context, userID string) (calendar.Actor, error)
}

// JWTAuth проверяет bearer-токен и кладёт Actor в контекст.
func JWTAuth(issuer *auth.Issuer, members Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := issuer.ParseValidate(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
			return
		}
		actor, err := members.Authenticate(c.Request.Context(), claims.Sub)
		if err != nil {
			writeError(c, err, nil)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only", "kind": calendar.KindPermission.String()})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) calendar.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(calendar.Actor)
	return a
}
