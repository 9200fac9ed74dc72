package store

import "sync"

// Registry выдаёт одно общее хранилище на актора, чтобы все потребители
// (HTTP-ответы, браузерные сокеты, согласование) читали одну копию.
type Registry struct {
	mu       sync.Mutex
	requests map[int64]*RequestStore
	chats    map[int64]map[int64]*MessageStore
}

func NewRegistry() *Registry {
	return &Registry{
		requests: make(map[int64]*RequestStore),
		chats:    make(map[int64]map[int64]*MessageStore),
	}
}

// Requests возвращает хранилище заявок актора, создавая его при первом обращении.
func (r *Registry) Requests(actorID int64) *RequestStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.requests[actorID]
	if !ok {
		s = NewRequestStore()
		r.requests[actorID] = s
	}
	return s
}

// Lookup возвращает хранилище заявок актора, не создавая его.
func (r *Registry) Lookup(actorID int64) (*RequestStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.requests[actorID]
	return s, ok
}

// WatchChat регистрирует открытый чат актора и возвращает его хранилище.
func (r *Registry) WatchChat(actorID, chatID int64) *MessageStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	chats, ok := r.chats[actorID]
	if !ok {
		chats = make(map[int64]*MessageStore)
		r.chats[actorID] = chats
	}
	s, ok := chats[chatID]
	if !ok {
		s = NewMessageStore(chatID)
		chats[chatID] = s
	}
	return s
}

// Chat возвращает хранилище открытого чата, если чат отслеживается.
func (r *Registry) Chat(actorID, chatID int64) (*MessageStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.chats[actorID][chatID]
	return s, ok
}

// UnwatchChat перестаёт отслеживать чат.
func (r *Registry) UnwatchChat(actorID, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if chats, ok := r.chats[actorID]; ok {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(r.chats, actorID)
		}
	}
}

// Actors возвращает акторов, у которых есть хранилище заявок.
func (r *Registry) Actors() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.requests))
	for id := range r.requests {
		ids = append(ids, id)
	}
	return ids
}

// Forget удаляет все хранилища актора.
func (r *Registry) Forget(actorID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.requests, actorID)
	delete(r.chats, actorID)
}
