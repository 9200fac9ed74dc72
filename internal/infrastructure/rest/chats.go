package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

type ChatRepository struct {
	client *Client
}

func NewChatRepository(client *Client) *ChatRepository {
	return &ChatRepository{client: client}
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

func (r *ChatRepository) FindByID(ctx context.Context, id int64) (*entity.Chat, error) {
	var out entity.Chat
	if err := r.client.do(ctx, http.MethodGet, idPath("/chats/%d", id), nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, chatID int64) ([]entity.ChatMessage, error) {
	var out []entity.ChatMessage
	if err := r.client.do(ctx, http.MethodGet, idPath("/chats/%d/messages", chatID), nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ChatRepository) SendMessage(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error) {
	var out entity.ChatMessage
	if err := r.client.do(ctx, http.MethodPost, idPath("/chats/%d/messages", msg.ChatID), nil, msg, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

type UserRepository struct {
	client *Client
}

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	var out entity.User
	if err := r.client.do(ctx, http.MethodPost, "/users", nil, user, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (*entity.User, error) {
	var out []entity.User
	query := url.Values{"external_id": []string{externalID}}
	if err := r.client.do(ctx, http.MethodGet, "/users", query, nil, &out, nil); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperror.New(apperror.ErrCodeNotFound, "пользователь не найден")
	}
	return &out[0], nil
}

func (r *UserRepository) CreateTechnicianProfile(ctx context.Context, profile *entity.TechnicianProfile) (*entity.TechnicianProfile, error) {
	var out entity.TechnicianProfile
	if err := r.client.do(ctx, http.MethodPost, "/technician-profiles", nil, profile, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *UserRepository) FindTechnicianProfileByUserID(ctx context.Context, userID int64) (*entity.TechnicianProfile, error) {
	var out []entity.TechnicianProfile
	query := url.Values{"user_id": []string{strconv.FormatInt(userID, 10)}}
	if err := r.client.do(ctx, http.MethodGet, "/technician-profiles", query, nil, &out, nil); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperror.New(apperror.ErrCodeNotFound, "профиль техника не найден")
	}
	return &out[0], nil
}
