package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/store"
)

const defaultRetryDelay = 2 * time.Second

// Reconciler переносит события push-канала актора в его хранилища.
// Доставка «хотя бы один раз»: повтор события безвреден благодаря
// слиянию по id. Порядок версий одной заявки не проверяется: побеждает
// пришедшая последней.
type Reconciler struct {
	source     repository.EventSource
	stores     *store.Registry
	retryDelay time.Duration

	// resync вызывается после переподключения, чтобы подобрать события,
	// пропущенные за время разрыва. Может быть nil.
	resync func(ctx context.Context, actorID int64) error
}

type Option func(*Reconciler)

// WithResync задаёт полную перезагрузку после переподключения.
func WithResync(fn func(ctx context.Context, actorID int64) error) Option {
	return func(r *Reconciler) { r.resync = fn }
}

// WithRetryDelay задаёт паузу перед повторной подпиской.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.retryDelay = d }
}

func NewReconciler(source repository.EventSource, stores *store.Registry, opts ...Option) *Reconciler {
	r := &Reconciler{source: source, stores: stores, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run держит подписку актора, пока не отменён ctx. Если канал закрылся
// раньше, подписка возобновляется через retryDelay.
func (r *Reconciler) Run(ctx context.Context, actorID int64) error {
	log := logger.ForActor(actorID).WithField("component", "reconciler")
	first := true

	for {
		events, err := r.source.Subscribe(ctx, actorID)
		if err != nil {
			log.WithError(err).Warn("Push subscription failed")
		} else {
			if !first && r.resync != nil {
				if err := r.resync(ctx, actorID); err != nil {
					log.WithError(err).Warn("Resync after reconnect failed")
				}
			}
			first = false
			r.consume(ctx, actorID, events, log)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *Reconciler) consume(ctx context.Context, actorID int64, events <-chan repository.Event, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				log.Info("Push channel closed")
				return
			}
			if err := r.Handle(actorID, ev); err != nil {
				log.WithError(err).WithField("event", ev.Type).Warn("Skipping malformed event")
			}
		}
	}
}

// Handle применяет одно событие. Неизвестные типы пропускаются.
func (r *Reconciler) Handle(actorID int64, ev repository.Event) error {
	switch ev.Type {
	case repository.EventRequestCreated:
		req, err := decodeRequest(ev.Data)
		if err != nil {
			return err
		}
		r.stores.Requests(actorID).ApplyCreated(*req)

	case repository.EventRequestUpdated:
		req, err := decodeRequest(ev.Data)
		if err != nil {
			return err
		}
		r.stores.Requests(actorID).ApplyUpdated(*req)

	case repository.EventMessageCreated:
		var msg entity.ChatMessage
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное сообщение чата")
		}
		if chat, ok := r.stores.Chat(actorID, msg.ChatID); ok {
			chat.Apply(msg)
		}
	}
	return nil
}

func decodeRequest(data json.RawMessage) (*entity.ServiceRequest, error) {
	var req entity.ServiceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректная заявка в событии")
	}
	if req.ID <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "в событии нет id заявки")
	}
	// Отсутствующий статус декодируется в ноль, которого нет среди статусов заявки.
	if _, err := valueobject.RequestStatusFromWire(req.Status.Wire()); err != nil {
		return nil, err
	}
	return &req, nil
}
