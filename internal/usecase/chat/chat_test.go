package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/store"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/chat"
)

type mockChatRepository struct {
	chats    map[int64]*entity.Chat
	messages map[int64][]entity.ChatMessage
	nextID   int64
}

func newMockChatRepository() *mockChatRepository {
	return &mockChatRepository{
		chats:    make(map[int64]*entity.Chat),
		messages: make(map[int64][]entity.ChatMessage),
		nextID:   100,
	}
}

func (m *mockChatRepository) FindByID(ctx context.Context, id int64) (*entity.Chat, error) {
	if c, ok := m.chats[id]; ok {
		return c, nil
	}
	return nil, apperror.New(apperror.ErrCodeNotFound, "чат не найден")
}

func (m *mockChatRepository) ListMessages(ctx context.Context, chatID int64) ([]entity.ChatMessage, error) {
	return m.messages[chatID], nil
}

func (m *mockChatRepository) SendMessage(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error) {
	m.nextID++
	saved := *msg
	saved.ID = m.nextID
	saved.SentAt = time.Now()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], saved)
	return &saved, nil
}

func setup() (*mockChatRepository, *store.Registry) {
	repo := newMockChatRepository()
	repo.chats[9] = &entity.Chat{ID: 9, RequestID: 1, ClientID: 1, TechnicianID: 50, Status: valueobject.ChatActive}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.messages[9] = []entity.ChatMessage{
		{ID: 2, ChatID: 9, SenderID: 50, Content: "Буду в 15:00", SentAt: base.Add(time.Minute)},
		{ID: 1, ChatID: 9, SenderID: 1, Content: "Когда сможете?", SentAt: base},
	}
	return repo, store.NewRegistry()
}

func TestOpenChat_LoadsOrderedHistory(t *testing.T) {
	repo, stores := setup()
	uc := chat.NewOpenChatUseCase(repo, stores)

	msgs, err := uc.Execute(context.Background(), 1, 9)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ID)

	_, watched := stores.Chat(1, 9)
	assert.True(t, watched)

	uc.CloseChat(1, 9)
	_, watched = stores.Chat(1, 9)
	assert.False(t, watched)
}

func TestOpenChat_ForbiddenForStranger(t *testing.T) {
	repo, stores := setup()
	uc := chat.NewOpenChatUseCase(repo, stores)

	_, err := uc.Execute(context.Background(), 77, 9)
	assert.True(t, apperror.IsForbidden(err))
	_, watched := stores.Chat(77, 9)
	assert.False(t, watched)
}

func TestSendMessage_AppendsToWatchedChat(t *testing.T) {
	repo, stores := setup()
	_, err := chat.NewOpenChatUseCase(repo, stores).Execute(context.Background(), 1, 9)
	require.NoError(t, err)

	msg, err := chat.NewSendMessageUseCase(repo, stores).Execute(context.Background(), 1, 9, "Жду")
	require.NoError(t, err)

	ms, _ := stores.Chat(1, 9)
	msgs := ms.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, msg.ID, msgs[2].ID)
}

func TestSendMessage_ClosedChat(t *testing.T) {
	repo, stores := setup()
	repo.chats[9].Status = valueobject.ChatFinalized

	_, err := chat.NewSendMessageUseCase(repo, stores).Execute(context.Background(), 1, 9, "Ещё вопрос")
	require.Error(t, err)
	assert.Len(t, repo.messages[9], 2)
}
