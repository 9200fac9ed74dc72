package service

import (
	"context"
	"sync"
	"time"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/goroutine"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/store"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/reconcile"
	"github.com/ignatzorin/techmarket-sync/internal/view"
)

const bridgeBuffer = 64

// Broadcaster доставляет события в браузерные соединения актора.
type Broadcaster interface {
	BroadcastToUser(actorID int64, event string, data interface{}) error
}

// SessionService держит push-подписку актора, пока у него открыто хотя
// бы одно браузерное соединение, и пересылает изменения хранилища в браузер.
// Хранилище актора без соединений не сверяется с push-каналом: снимок
// перезагружается, если старше snapshotTTL, а простаивающее дольше idleTTL
// хранилище сбрасывает Sweep.
type SessionService struct {
	requests    repository.RequestRepository
	source      repository.EventSource
	stores      *store.Registry
	hub         Broadcaster
	retryDelay  time.Duration
	snapshotTTL time.Duration
	idleTTL     time.Duration

	mu       sync.Mutex
	sessions map[int64]*session
	seen     map[int64]time.Time
}

type SessionOption func(*SessionService)

// WithSnapshotTTL задаёт возраст снимка, после которого HTTP-запрос актора
// без соединений перезагружает хранилище. Ноль отключает перезагрузку.
func WithSnapshotTTL(d time.Duration) SessionOption {
	return func(s *SessionService) { s.snapshotTTL = d }
}

// WithIdleTTL задаёт простой, после которого Sweep сбрасывает хранилище
// актора без соединений. Ноль отключает сброс.
func WithIdleTTL(d time.Duration) SessionOption {
	return func(s *SessionService) { s.idleTTL = d }
}

type session struct {
	refs   int
	cancel context.CancelFunc
}

func NewSessionService(
	requests repository.RequestRepository,
	source repository.EventSource,
	stores *store.Registry,
	hub Broadcaster,
	retryDelay time.Duration,
	opts ...SessionOption,
) *SessionService {
	s := &SessionService{
		requests:   requests,
		source:     source,
		stores:     stores,
		hub:        hub,
		retryDelay: retryDelay,
		sessions:   make(map[int64]*session),
		seen:       make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load полностью перезагружает хранилище заявок актора.
func (s *SessionService) Load(ctx context.Context, v view.Viewer) error {
	scope := repository.RequestScope{Role: v.Role, ActorID: v.ActorID}
	return s.stores.Requests(v.ActorID).Load(ctx, func(ctx context.Context) ([]entity.ServiceRequest, error) {
		return s.requests.List(ctx, scope)
	})
}

// Snapshot возвращает заявки актора, загружая их при первом обращении
// и при устаревании снимка у актора без соединений.
func (s *SessionService) Snapshot(ctx context.Context, v view.Viewer) ([]entity.ServiceRequest, error) {
	st := s.stores.Requests(v.ActorID)
	if s.stale(v.ActorID, st) {
		if err := s.Load(ctx, v); err != nil {
			return nil, err
		}
	}
	return st.Snapshot(), nil
}

func (s *SessionService) stale(actorID int64, st *store.RequestStore) bool {
	s.mu.Lock()
	_, active := s.sessions[actorID]
	if !active {
		s.seen[actorID] = time.Now()
	}
	s.mu.Unlock()

	if !st.Loaded() {
		return true
	}
	// Хранилище с открытой сессией сверяется с push-каналом.
	return !active && s.snapshotTTL > 0 && time.Since(st.LoadedAt()) > s.snapshotTTL
}

// Sweep сбрасывает хранилища акторов без соединений, к которым не
// обращались дольше idleTTL. Возвращает число сброшенных хранилищ.
func (s *SessionService) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	forgotten := 0
	for _, actorID := range s.stores.Actors() {
		if _, ok := s.sessions[actorID]; ok {
			continue
		}
		last := s.seen[actorID]
		if st, ok := s.stores.Lookup(actorID); ok && st.LoadedAt().After(last) {
			last = st.LoadedAt()
		}
		if now.Sub(last) < s.idleTTL {
			continue
		}
		s.stores.Forget(actorID)
		delete(s.seen, actorID)
		forgotten++
	}
	for actorID, at := range s.seen {
		if now.Sub(at) >= s.idleTTL {
			delete(s.seen, actorID)
		}
	}
	return forgotten
}

// RunJanitor периодически вызывает Sweep до отмены ctx.
func (s *SessionService) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				logger.Get().WithField("forgotten", n).Debug("Idle request stores released")
			}
		}
	}
}

// Attach регистрирует браузерное соединение актора. Первое соединение
// загружает хранилище и запускает сверку с push-каналом; release
// последнего соединения останавливает их и сбрасывает хранилище.
func (s *SessionService) Attach(ctx context.Context, v view.Viewer, token string) (func(), error) {
	if s.join(v.ActorID) {
		return s.releaser(v.ActorID), nil
	}

	// Загрузка идёт без блокировки: соединения других акторов не ждут её.
	if err := s.Load(rest.WithToken(ctx, token), v); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[v.ActorID]; ok {
		sess.refs++
		return s.releaser(v.ActorID), nil
	}

	sctx, cancel := context.WithCancel(rest.WithToken(context.WithoutCancel(ctx), token))
	s.sessions[v.ActorID] = &session{refs: 1, cancel: cancel}

	rec := reconcile.NewReconciler(s.source, s.stores,
		reconcile.WithRetryDelay(s.retryDelay),
		reconcile.WithResync(func(ctx context.Context, _ int64) error {
			return s.Load(ctx, v)
		}),
	)
	goroutine.SafeGoWithContext(sctx, func(ctx context.Context) {
		_ = rec.Run(ctx, v.ActorID)
	})
	st := s.stores.Requests(v.ActorID)
	changes, unsubscribe := st.Subscribe(bridgeBuffer)
	goroutine.SafeGoWithContext(sctx, func(ctx context.Context) {
		s.bridge(ctx, v.ActorID, st, changes, unsubscribe)
	})

	logger.ForActor(v.ActorID).WithField("role", v.Role).Info("Session started")
	return s.releaser(v.ActorID), nil
}

func (s *SessionService) join(actorID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[actorID]
	if ok {
		sess.refs++
	}
	return ok
}

// SendSnapshot отправляет актору текущее состояние хранилища.
func (s *SessionService) SendSnapshot(actorID int64) error {
	return s.hub.BroadcastToUser(actorID, string(store.ChangeLoaded), s.stores.Requests(actorID).Snapshot())
}

// Active сообщает, есть ли у актора открытая сессия.
func (s *SessionService) Active(actorID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[actorID]
	return ok
}

// Shutdown останавливает все сессии.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for actorID, sess := range s.sessions {
		sess.cancel()
		delete(s.sessions, actorID)
	}
}

func (s *SessionService) releaser(actorID int64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			sess, ok := s.sessions[actorID]
			if !ok {
				return
			}
			sess.refs--
			if sess.refs > 0 {
				return
			}
			sess.cancel()
			delete(s.sessions, actorID)
			s.stores.Forget(actorID)
			logger.ForActor(actorID).Info("Session stopped")
		})
	}
}

// bridge пересылает изменения хранилища в хаб. Если подписка сброшена
// как медленная, мост переподписывается и отправляет полный снимок.
func (s *SessionService) bridge(ctx context.Context, actorID int64, st *store.RequestStore, changes <-chan store.Change, unsubscribe func()) {
	log := logger.ForActor(actorID).WithField("component", "bridge")

	for {
		dropped := s.forward(ctx, actorID, st, changes)
		unsubscribe()
		if !dropped {
			return
		}
		changes, unsubscribe = st.Subscribe(bridgeBuffer)

		log.Warn("Store subscription dropped, resending snapshot")
		if err := s.SendSnapshot(actorID); err != nil {
			log.WithError(err).Warn("Failed to resend snapshot")
		}
	}
}

// forward возвращает true, если канал изменений закрыло хранилище.
func (s *SessionService) forward(ctx context.Context, actorID int64, st *store.RequestStore, changes <-chan store.Change) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return ctx.Err() == nil
			}
			var data interface{} = change.Request
			if change.Kind == store.ChangeLoaded {
				data = st.Snapshot()
			}
			if err := s.hub.BroadcastToUser(actorID, string(change.Kind), data); err != nil {
				logger.ForActor(actorID).WithError(err).Warn("Failed to forward store change")
			}
		}
	}
}
