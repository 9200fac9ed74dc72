package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/http/middleware"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/view"
)

var errUserNotFound = errors.New("пользователь не найден в контексте")

// currentViewer извлекает актора, установленного AuthMiddleware.
func currentViewer(c *gin.Context) (view.Viewer, error) {
	rawID, ok := c.Get(middleware.ContextActorIDKey)
	if !ok {
		return view.Viewer{}, errUserNotFound
	}
	actorID, ok := rawID.(int64)
	if !ok {
		return view.Viewer{}, errUserNotFound
	}
	role, _ := c.Get(middleware.ContextRoleKey)
	r, ok := role.(entity.Role)
	if !ok {
		return view.Viewer{}, errUserNotFound
	}
	return view.Viewer{Role: r, ActorID: actorID}, nil
}

// userContext - контекст запроса, несущий токен пользователя для REST API.
func userContext(c *gin.Context) context.Context {
	return rest.WithToken(c.Request.Context(), c.GetString(middleware.ContextTokenKey))
}

// paramID читает id, уже проверенный IDValidator.
func paramID(c *gin.Context, name string) int64 {
	id, _ := strconv.ParseInt(c.Param(name), 10, 64)
	return id
}

// parseStatusQuery принимает код статуса ("5") или имя ("accepted_by_tech").
func parseStatusQuery(raw string) (*valueobject.RequestStatus, error) {
	if raw == "" {
		return nil, nil
	}

	var code valueobject.Status
	if n, err := strconv.ParseUint(raw, 10, 8); err == nil {
		code = valueobject.Status(n)
	} else {
		parsed, err := valueobject.ParseStatusName(strings.ToUpper(raw))
		if err != nil {
			return nil, err
		}
		code = parsed
	}

	st, err := valueobject.RequestStatusFromWire(code)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
