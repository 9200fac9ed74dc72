package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
)

type EventType string

const (
	EventRequestCreated EventType = "request:created"
	EventRequestUpdated EventType = "request:updated"
	EventMessageCreated EventType = "message:created"
)

// Event - сообщение push-канала: {"type": ..., "data": ...}. Data имеет
// ту же форму, что и ответ REST API для соответствующей сущности.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventSource - push-канал, ограниченный одним актором. Канал событий
// закрывается, когда отменён ctx или транспорт окончательно разорван.
type EventSource interface {
	Subscribe(ctx context.Context, actorID int64) (<-chan Event, error)
}

// CompensationJournal хранит компенсации, которые не удалось выполнить
// сразу (например, удаление осиротевшего предложения).
type CompensationJournal interface {
	Record(ctx context.Context, c *entity.Compensation) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]entity.Compensation, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error
}
