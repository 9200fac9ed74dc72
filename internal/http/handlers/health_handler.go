package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck проверяет одну зависимость.
type HealthCheck func(ctx context.Context) error

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler создаёт новый health handler.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			status = "unhealthy"
			continue
		}
		results[name] = "healthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{Status: status, Timestamp: time.Now(), Checks: results})
}
