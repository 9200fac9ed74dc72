package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

// RateLimitMiddleware ограничивает частоту действий. Ключ - id пользователя,
// если он уже известен из токена, иначе IP.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 30
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if actorID, ok := c.Get(ContextActorIDKey); ok {
			key = "actor:" + strconv.FormatInt(actorID.(int64), 10)
		}

		lctx, err := instance.Get(c, key)
		if err != nil {
			response.Error(c, apperror.Wrap(err, apperror.ErrCodeInternal, "ошибка ограничителя запросов"))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", lctx.Reset))

		if lctx.Reached {
			response.TooManyRequests(c, "слишком много запросов, попробуйте позже")
			c.Abort()
			return
		}

		c.Next()
	}
}
