package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/dto"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
)

type ChatOpener interface {
	Execute(ctx context.Context, actorID, chatID int64) ([]entity.ChatMessage, error)
	CloseChat(actorID, chatID int64)
}

type MessageSender interface {
	Execute(ctx context.Context, actorID, chatID int64, content string) (*entity.ChatMessage, error)
}

type ChatHandler struct {
	open ChatOpener
	send MessageSender
}

func NewChatHandler(open ChatOpener, send MessageSender) *ChatHandler {
	return &ChatHandler{open: open, send: send}
}

// Messages обслуживает GET /api/chats/:id/messages: открывает чат и
// начинает принимать его сообщения из push-канала.
func (h *ChatHandler) Messages(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	messages, err := h.open.Execute(userContext(c), viewer.ActorID, paramID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, messages)
}

// Send обслуживает POST /api/chats/:id/messages.
func (h *ChatHandler) Send(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "сообщение не может быть пустым")
		return
	}

	msg, err := h.send.Execute(userContext(c), viewer.ActorID, paramID(c, "id"), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// Close обслуживает DELETE /api/chats/:id/watch.
func (h *ChatHandler) Close(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	h.open.CloseChat(viewer.ActorID, paramID(c, "id"))
	response.Success(c, nil)
}
