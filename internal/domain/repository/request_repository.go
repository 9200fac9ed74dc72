package repository

import (
	"context"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
)

// RequestScope определяет, какие заявки видит актор.
type RequestScope struct {
	Role    entity.Role
	ActorID int64
}

type RequestRepository interface {
	List(ctx context.Context, scope RequestScope) ([]entity.ServiceRequest, error)
	FindByID(ctx context.Context, id int64) (*entity.ServiceRequest, error)
	Create(ctx context.Context, draft *entity.RequestDraft) (*entity.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id int64, status valueobject.RequestStatus) (*entity.ServiceRequest, error)
}

type OfferRepository interface {
	// Create создаёт предложение. idempotencyKey позволяет серверу
	// распознать повтор того же действия.
	Create(ctx context.Context, draft *entity.OfferDraft, idempotencyKey string) (*entity.ServiceOffer, error)
	UpdateStatus(ctx context.Context, id int64, status valueobject.OfferStatus) (*entity.ServiceOffer, error)
	Delete(ctx context.Context, id int64) error
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) (*entity.Notification, error)
	FindByID(ctx context.Context, id int64) (*entity.Notification, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *entity.Review) (*entity.Review, error)
}
