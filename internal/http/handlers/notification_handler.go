package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/interface/http/dto"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
)

type RequestResolver interface {
	Execute(ctx context.Context, actorID, notificationID int64) (int64, error)
}

// NotificationHandler переводит уведомление в ссылку на заявку.
type NotificationHandler struct {
	resolve RequestResolver
}

func NewNotificationHandler(resolve RequestResolver) *NotificationHandler {
	return &NotificationHandler{resolve: resolve}
}

// Request обслуживает GET /api/notifications/:id/request.
func (h *NotificationHandler) Request(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	requestID, err := h.resolve.Execute(userContext(c), viewer.ActorID, paramID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NotificationTargetResponse{RequestID: requestID})
}
