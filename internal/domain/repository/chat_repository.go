package repository

import (
	"context"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
)

type ChatRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.Chat, error)
	ListMessages(ctx context.Context, chatID int64) ([]entity.ChatMessage, error)
	SendMessage(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) (*entity.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*entity.User, error)
	CreateTechnicianProfile(ctx context.Context, profile *entity.TechnicianProfile) (*entity.TechnicianProfile, error)
	FindTechnicianProfileByUserID(ctx context.Context, userID int64) (*entity.TechnicianProfile, error)
}
