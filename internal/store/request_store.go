package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
)

// ChangeKind описывает, как изменился список заявок.
type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "requests:loaded"
	ChangeCreated ChangeKind = "request:created"
	ChangeUpdated ChangeKind = "request:updated"
)

// Change - уведомление подписчику. Для ChangeLoaded Request пустой:
// подписчик должен заново прочитать Snapshot.
type Change struct {
	Kind    ChangeKind
	Request *entity.ServiceRequest
}

// RequestStore - локальная копия заявок актора. Все изменения проходят
// через одно правило слияния по id: в списке не больше одной записи на id,
// и запись соответствует последней применённой версии (по порядку прихода,
// без сравнения updated_at).
type RequestStore struct {
	mu       sync.RWMutex
	items    []entity.ServiceRequest
	index    map[int64]int
	loaded   bool
	loadedAt time.Time
	subs     map[int]chan Change
	nextSub  int
}

// NewRequestStore создаёт пустое хранилище.
func NewRequestStore() *RequestStore {
	return &RequestStore{
		index: make(map[int64]int),
		subs:  make(map[int]chan Change),
	}
}

// FetchFunc загружает полный список заявок с сервера.
type FetchFunc func(ctx context.Context) ([]entity.ServiceRequest, error)

// Load заменяет весь список свежей выборкой. При ошибке прежний список
// остаётся нетронутым.
func (s *RequestStore) Load(ctx context.Context, fetch FetchFunc) error {
	fresh, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("request store: load %w", err)
	}

	items := make([]entity.ServiceRequest, 0, len(fresh))
	index := make(map[int64]int, len(fresh))
	for _, r := range fresh {
		// Сервер не должен присылать дубликаты, но если прислал,
		// оставляем последнюю версию на месте первой.
		if pos, ok := index[r.ID]; ok {
			items[pos] = r.Clone()
			continue
		}
		index[r.ID] = len(items)
		items = append(items, r.Clone())
	}

	s.mu.Lock()
	s.items = items
	s.index = index
	s.loaded = true
	s.loadedAt = time.Now()
	s.publishLocked(Change{Kind: ChangeLoaded})
	s.mu.Unlock()

	return nil
}

// ApplyCreated добавляет заявку в начало списка. Если заявка с таким id
// уже есть, она заменяется на месте.
func (s *RequestStore) ApplyCreated(req entity.ServiceRequest) {
	req = req.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[req.ID]; ok {
		s.items[pos] = req
		s.publishLocked(Change{Kind: ChangeCreated, Request: cloneRef(req)})
		return
	}

	s.items = append([]entity.ServiceRequest{req}, s.items...)
	for id := range s.index {
		s.index[id]++
	}
	s.index[req.ID] = 0
	s.publishLocked(Change{Kind: ChangeCreated, Request: cloneRef(req)})
}

// ApplyUpdated заменяет заявку с тем же id, сохраняя её позицию.
// Возвращает false, если такой заявки нет: обновление не превращается во вставку.
func (s *RequestStore) ApplyUpdated(req entity.ServiceRequest) bool {
	req = req.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[req.ID]
	if !ok {
		return false
	}
	s.items[pos] = req
	s.publishLocked(Change{Kind: ChangeUpdated, Request: cloneRef(req)})
	return true
}

// Snapshot возвращает копию текущего списка в порядке хранения.
func (s *RequestStore) Snapshot() []entity.ServiceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.ServiceRequest, len(s.items))
	for i, r := range s.items {
		out[i] = r.Clone()
	}
	return out
}

// Get возвращает копию заявки по id.
func (s *RequestStore) Get(id int64) (entity.ServiceRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return entity.ServiceRequest{}, false
	}
	return s.items[pos].Clone(), true
}

// Len возвращает количество заявок.
func (s *RequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loaded сообщает, была ли хотя бы одна успешная полная загрузка.
func (s *RequestStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LoadedAt - время последней успешной загрузки; нулевое, если её не было.
func (s *RequestStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Subscribe подписывает на изменения. Подписчик, не успевающий разбирать
// буфер, отключается: его канал закрывается, и ему нужно подписаться
// заново и перечитать Snapshot.
func (s *RequestStore) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

func (s *RequestStore) publishLocked(change Change) {
	for id, ch := range s.subs {
		select {
		case ch <- change:
		default:
			delete(s.subs, id)
			close(ch)
		}
	}
}

func cloneRef(r entity.ServiceRequest) *entity.ServiceRequest {
	c := r.Clone()
	return &c
}
