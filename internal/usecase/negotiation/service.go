package negotiation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/store"
)

const (
	defaultFlowTimeout = 30 * time.Second

	// compensationTimeout отсчитывается заново: к моменту отката контекст
	// сценария может быть уже истёкшим.
	compensationTimeout = 15 * time.Second
)

type Deps struct {
	Requests      repository.RequestRepository
	Offers        repository.OfferRepository
	Notifications repository.NotificationRepository
	Reviews       repository.ReviewRepository
	Stores        *store.Registry

	// Journal может быть nil: тогда неудавшаяся компенсация только логируется.
	Journal repository.CompensationJournal

	// FlowTimeout ограничивает весь сценарий целиком.
	FlowTimeout time.Duration

	// NewKey выдаёт ключ идемпотентности для создания предложения.
	NewKey func() string
}

// Service выполняет сценарии согласования заявки. Шаги сценария идут строго
// последовательно: каждый следующий зависит от результата предыдущего.
// Локальное хранилище актора изменяется только после успеха всех шагов.
type Service struct {
	deps Deps

	mu       sync.Mutex
	inFlight map[flowKey]struct{}
}

type flowKey struct {
	actorID   int64
	requestID int64
}

func NewService(deps Deps) *Service {
	if deps.FlowTimeout <= 0 {
		deps.FlowTimeout = defaultFlowTimeout
	}
	if deps.NewKey == nil {
		deps.NewKey = NewIdempotencyKey
	}
	if deps.Stores == nil {
		deps.Stores = store.NewRegistry()
	}
	return &Service{
		deps:     deps,
		inFlight: make(map[flowKey]struct{}),
	}
}

// NewIdempotencyKey возвращает новый ULID.
func NewIdempotencyKey() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// begin занимает пару (актор, заявка). Повторный вызов, пока первый не
// завершился, получает ErrActionInFlight без обращений к сети.
func (s *Service) begin(actorID, requestID int64) (func(), error) {
	key := flowKey{actorID: actorID, requestID: requestID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return nil, apperror.ErrActionInFlight
	}
	s.inFlight[key] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}, nil
}

// detach отвязывает сценарий от отмены вызывающего: начатый сценарий
// доводится до конца или до FlowTimeout.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.deps.FlowTimeout)
}

// lookup берёт заявку из локального хранилища актора, а при её отсутствии
// запрашивает сервер.
func (s *Service) lookup(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
	if r, ok := s.deps.Stores.Requests(actorID).Get(requestID); ok {
		return &r, nil
	}
	r, err := s.deps.Requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperror.ErrRequestNotFound
	}
	return r, nil
}

// compensate удаляет предложение, созданное незавершённым сценарием.
// Если удалить не удалось, запись уходит в журнал для повторной попытки.
func (s *Service) compensate(ctx context.Context, log *logrus.Entry, actorID, requestID, offerID int64, cause error) {
	log = log.WithFields(logrus.Fields{"offer_id": offerID, "cause": cause.Error()})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := s.deps.Offers.Delete(ctx, offerID)
	if err == nil || apperror.IsNotFound(err) {
		log.Warn("Created offer rolled back")
		return
	}

	log.WithError(err).Error("Failed to roll back offer")
	if s.deps.Journal == nil {
		return
	}
	if jerr := s.deps.Journal.Record(ctx, entity.NewOfferCompensation(actorID, requestID, offerID, err)); jerr != nil {
		log.WithError(jerr).Error("Failed to record compensation")
	}
}

// notify отправляет уведомление. Ошибка не прерывает сценарий.
func (s *Service) notify(ctx context.Context, log *logrus.Entry, userID, requestID int64, text string) {
	if s.deps.Notifications == nil || userID <= 0 {
		return
	}
	if _, err := s.deps.Notifications.Create(ctx, entity.NewRequestNotification(userID, requestID, text)); err != nil {
		log.WithError(err).WithField("recipient_id", userID).Warn("Failed to send notification")
	}
}

// patch применяет итог сценария к хранилищу актора. Если сервер вернул
// заявку без предложений, берутся предложения из локальной копии.
func (s *Service) patch(actorID int64, local *entity.ServiceRequest, updated *entity.ServiceRequest, offer *entity.ServiceOffer) entity.ServiceRequest {
	result := updated.Clone()
	if result.Offers == nil && local != nil {
		result.Offers = append([]entity.ServiceOffer(nil), local.Offers...)
	}
	if offer != nil {
		result = result.WithOffer(*offer)
	}

	st := s.deps.Stores.Requests(actorID)
	if !st.ApplyUpdated(result) {
		st.ApplyCreated(result)
	}
	return result
}

func flowLog(actorID, requestID int64, flow string) *logrus.Entry {
	return logger.ForActor(actorID).WithFields(logrus.Fields{
		"request_id": requestID,
		"flow":       flow,
	})
}

func stepError(step string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeUpstream, fmt.Sprintf("шаг %q не выполнен", step))
}
