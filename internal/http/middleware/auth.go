package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextActorIDKey = "actorID"
	ContextRoleKey    = "role"
	ContextTokenKey   = "token"
	ContextClaimsKey  = "identity"
)

// AuthMiddleware проверяет Bearer-токен и требует id пользователя в sub.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		actorID, role, err := tokens.ParseAccess(raw)
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextActorIDKey, actorID)
		c.Set(ContextRoleKey, role)
		c.Set(ContextTokenKey, raw)
		c.Next()
	}
}

// IdentityMiddleware пропускает токены без sub: через него проходит
// первичная регистрация учётной записи.
func IdentityMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil || claims.ExternalID == "" {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, raw)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
