package chat

import (
	"context"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/store"
)

// OpenChatUseCase загружает историю чата и начинает принимать его
// сообщения из push-канала.
type OpenChatUseCase struct {
	chatRepo repository.ChatRepository
	stores   *store.Registry
}

func NewOpenChatUseCase(chatRepo repository.ChatRepository, stores *store.Registry) *OpenChatUseCase {
	return &OpenChatUseCase{chatRepo: chatRepo, stores: stores}
}

func (uc *OpenChatUseCase) Execute(ctx context.Context, actorID, chatID int64) ([]entity.ChatMessage, error) {
	chat, err := uc.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(actorID) {
		return nil, apperror.ErrForbidden
	}

	// Регистрируем чат до загрузки истории: сообщения, пришедшие во время
	// загрузки, не потеряются, а дубли схлопнутся по id.
	ms := uc.stores.WatchChat(actorID, chatID)

	history, err := uc.chatRepo.ListMessages(ctx, chatID)
	if err != nil {
		uc.stores.UnwatchChat(actorID, chatID)
		return nil, err
	}
	for _, m := range history {
		ms.Apply(m)
	}
	return ms.Messages(), nil
}

// CloseChat перестаёт отслеживать чат.
func (uc *OpenChatUseCase) CloseChat(actorID, chatID int64) {
	uc.stores.UnwatchChat(actorID, chatID)
}

type SendMessageUseCase struct {
	chatRepo repository.ChatRepository
	stores   *store.Registry
}

func NewSendMessageUseCase(chatRepo repository.ChatRepository, stores *store.Registry) *SendMessageUseCase {
	return &SendMessageUseCase{chatRepo: chatRepo, stores: stores}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, actorID, chatID int64, content string) (*entity.ChatMessage, error) {
	chat, err := uc.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	draft, err := entity.NewChatMessageDraft(chat, actorID, content)
	if err != nil {
		return nil, err
	}

	msg, err := uc.chatRepo.SendMessage(ctx, draft)
	if err != nil {
		logger.ForActor(actorID).WithError(err).WithField("chat_id", chatID).Error("Failed to send chat message")
		return nil, err
	}

	if ms, ok := uc.stores.Chat(actorID, chatID); ok {
		ms.Apply(*msg)
	}
	return msg, nil
}
