package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
)

// RequireRole пропускает только пользователей с одной из ролей.
// Ставится после AuthMiddleware.
func RequireRole(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Get(ContextRoleKey)
		role, _ := raw.(entity.Role)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "действие недоступно для роли "+string(role))
		c.Abort()
	}
}
