package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
)

// ErrorHandler отвечает за ошибки, добавленные хэндлерами через c.Error,
// если ответ ещё не отправлен. Внутренние ошибки маскируются в response.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		logger.Get().WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request error")

		response.Error(c, err.Err)
	}
}

// RequestLogger пишет строку лога на каждый запрос.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		entry := logger.Get().WithFields(logrus.Fields{
			"status": c.Writer.Status(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		if actorID, ok := c.Get(ContextActorIDKey); ok {
			entry = entry.WithField("actor_id", actorID)
		}
		if c.Writer.Status() >= 500 {
			entry.Warn("Request served")
			return
		}
		entry.Debug("Request served")
	}
}
