package notification

import (
	"context"

	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

// ResolveRequestUseCase находит заявку, на которую ссылается уведомление.
type ResolveRequestUseCase struct {
	notifications repository.NotificationRepository
}

func NewResolveRequestUseCase(notifications repository.NotificationRepository) *ResolveRequestUseCase {
	return &ResolveRequestUseCase{notifications: notifications}
}

func (uc *ResolveRequestUseCase) Execute(ctx context.Context, actorID, notificationID int64) (int64, error) {
	n, err := uc.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return 0, err
	}
	if n.UserID != actorID {
		return 0, apperror.ErrForbidden
	}

	requestID, ok := n.RequestID()
	if !ok {
		return 0, apperror.New(apperror.ErrCodeNotFound, "уведомление не ссылается на заявку")
	}
	return requestID, nil
}
