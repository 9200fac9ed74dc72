package entity

import (
	"time"

	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/validation"
)

// Chat создаётся сервером, когда клиент принимает предложение.
type Chat struct {
	ID           int64                  `json:"id"`
	RequestID    int64                  `json:"request_id"`
	ClientID     int64                  `json:"client_id"`
	TechnicianID int64                  `json:"technician_id"`
	Status       valueobject.ChatStatus `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (c *Chat) IsParticipant(userID int64) bool {
	return c.ClientID == userID || c.TechnicianID == userID
}

func (c *Chat) AcceptsMessages() bool {
	return !c.Status.IsTerminal()
}

type ChatMessage struct {
	ID       int64     `json:"id"`
	ChatID   int64     `json:"chat_id"`
	SenderID int64     `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// NewChatMessageDraft проверяет сообщение перед отправкой в чат.
func NewChatMessageDraft(chat *Chat, senderID int64, content string) (*ChatMessage, error) {
	if !chat.IsParticipant(senderID) {
		return nil, apperror.ErrForbidden
	}
	if !chat.AcceptsMessages() {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "чат закрыт")
	}
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	return &ChatMessage{
		ChatID:   chat.ID,
		SenderID: senderID,
		Content:  content,
	}, nil
}
