package store

import (
	"sort"
	"sync"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
)

// MessageStore - сообщения одного открытого чата, упорядоченные по sent_at
// (при равенстве - по id). Повтор сообщения с тем же id заменяет прежнее.
type MessageStore struct {
	mu       sync.RWMutex
	chatID   int64
	messages []entity.ChatMessage
}

func NewMessageStore(chatID int64) *MessageStore {
	return &MessageStore{chatID: chatID}
}

func (s *MessageStore) ChatID() int64 {
	return s.chatID
}

// Load заменяет историю чата.
func (s *MessageStore) Load(messages []entity.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = s.messages[:0]
	for _, m := range messages {
		s.applyLocked(m)
	}
}

// Apply добавляет или заменяет сообщение. Сообщения чужих чатов
// игнорируются, возвращается false.
func (s *MessageStore) Apply(msg entity.ChatMessage) bool {
	if msg.ChatID != s.chatID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(msg)
	return true
}

func (s *MessageStore) applyLocked(msg entity.ChatMessage) {
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}

	pos := sort.Search(len(s.messages), func(i int) bool {
		return messageBefore(msg, s.messages[i])
	})
	s.messages = append(s.messages, entity.ChatMessage{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = msg
}

// Messages возвращает копию упорядоченного списка.
func (s *MessageStore) Messages() []entity.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.ChatMessage(nil), s.messages...)
}

func messageBefore(a, b entity.ChatMessage) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return a.ID < b.ID
}
