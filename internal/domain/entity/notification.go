package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ResourceType - тип сущности, на которую ссылается уведомление.
type ResourceType string

const ResourceServiceRequest ResourceType = "service_request"

// ResourceRef - структурированная ссылка на сущность.
type ResourceRef struct {
	Type ResourceType `json:"type"`
	ID   int64        `json:"id"`
}

// Notification - сообщение пользователю. Старые клиенты ищут id заявки
// в тексте по шаблону "#<id>", поэтому текст всегда его содержит;
// новые читают поле ref.
type Notification struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Content   string       `json:"content"`
	Ref       *ResourceRef `json:"ref,omitempty"`
	IsRead    bool         `json:"is_read"`
	CreatedAt time.Time    `json:"created_at"`
}

var requestRefPattern = regexp.MustCompile(`#(\d+)`)

// NewRequestNotification формирует уведомление о событии по заявке.
// text - текст без ссылки, ссылка "#<id>" дописывается в конец.
func NewRequestNotification(userID, requestID int64, text string) *Notification {
	return &Notification{
		UserID:  userID,
		Content: fmt.Sprintf("%s #%d", text, requestID),
		Ref:     &ResourceRef{Type: ResourceServiceRequest, ID: requestID},
	}
}

// RequestID возвращает id заявки, на которую ссылается уведомление:
// сначала из ref, затем из первого вхождения "#<id>" в тексте.
func (n *Notification) RequestID() (int64, bool) {
	if n.Ref != nil && n.Ref.Type == ResourceServiceRequest && n.Ref.ID > 0 {
		return n.Ref.ID, true
	}
	return ParseRequestRef(n.Content)
}

// ParseRequestRef извлекает id из первого вхождения "#<число>".
func ParseRequestRef(content string) (int64, bool) {
	m := requestRefPattern.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
