package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
)

// IDValidator проверяет, что параметры пути - положительные целые id.
// Использование: router.POST("/requests/:id/accept", IDValidator("id"), handler.Accept)
func IDValidator(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range params {
			id, err := strconv.ParseInt(c.Param(name), 10, 64)
			if err != nil || id <= 0 {
				response.BadRequest(c, "параметр "+name+" должен быть положительным целым числом")
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
