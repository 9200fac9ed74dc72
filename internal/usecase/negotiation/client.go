package negotiation

import (
	"context"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

type CreateRequestInput struct {
	Description  string
	OfferedPrice float64
}

type RateInput struct {
	Rating  int
	Comment *string
}

// ClientAccept: клиент принимает предложение техника.
func (s *Service) ClientAccept(ctx context.Context, clientID, requestID, offerID int64) (*entity.ServiceRequest, error) {
	return s.decide(ctx, clientID, requestID, offerID, valueobject.RequestAcceptedByClient,
		"client_accept", "Клиент принял ваше предложение по заявке")
}

// ClientReject: клиент отклоняет предложение техника.
func (s *Service) ClientReject(ctx context.Context, clientID, requestID, offerID int64) (*entity.ServiceRequest, error) {
	return s.decide(ctx, clientID, requestID, offerID, valueobject.RequestRejectedByClient,
		"client_reject", "Клиент отклонил ваше предложение по заявке")
}

func (s *Service) decide(ctx context.Context, clientID, requestID, offerID int64, target valueobject.RequestStatus, flow, notifyText string) (*entity.ServiceRequest, error) {
	release, err := s.begin(clientID, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	log := flowLog(clientID, requestID, flow).WithField("offer_id", offerID)

	req, err := s.lookup(ctx, clientID, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsOwnedBy(clientID) {
		return nil, apperror.ErrForbidden
	}
	offer, ok := req.FindOffer(offerID)
	if !ok {
		return nil, apperror.ErrOfferNotFound
	}
	if !offer.Status.IsTechnicianResponse() || offer.Status == valueobject.OfferRejectedByTech {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "на это предложение нельзя ответить")
	}
	technicianID := offer.TechnicianID

	updated, err := s.deps.Requests.UpdateStatus(ctx, req.ID, target)
	if err != nil {
		log.WithError(err).Error("Failed to set request status")
		return nil, stepError("update_request_status", err)
	}

	s.notify(ctx, log, technicianID, req.ID, notifyText)

	result := s.patch(clientID, req, updated, nil)
	log.Info("Client decision applied")
	return &result, nil
}

// Finalize: клиент подтверждает завершение работ.
func (s *Service) Finalize(ctx context.Context, clientID, requestID int64) (*entity.ServiceRequest, error) {
	release, err := s.begin(clientID, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	log := flowLog(clientID, requestID, "finalize")

	req, err := s.lookup(ctx, clientID, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsOwnedBy(clientID) {
		return nil, apperror.ErrForbidden
	}
	if req.Status != valueobject.RequestAcceptedByClient && req.Status != valueobject.RequestChatActive {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "завершить можно только заявку в работе")
	}

	updated, err := s.deps.Requests.UpdateStatus(ctx, req.ID, valueobject.RequestFinalized)
	if err != nil {
		log.WithError(err).Error("Failed to finalize request")
		return nil, stepError("update_request_status", err)
	}

	if techID, ok := engagedTechnician(req); ok {
		s.notify(ctx, log, techID, req.ID, "Клиент завершил работу по заявке")
	}

	result := s.patch(clientID, req, updated, nil)
	log.Info("Request finalized")
	return &result, nil
}

// Rate: клиент оставляет отзыв о завершённой работе.
func (s *Service) Rate(ctx context.Context, clientID, requestID int64, input RateInput) (*entity.ServiceRequest, error) {
	release, err := s.begin(clientID, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	log := flowLog(clientID, requestID, "rate")

	req, err := s.lookup(ctx, clientID, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsOwnedBy(clientID) {
		return nil, apperror.ErrForbidden
	}
	if req.Status != valueobject.RequestFinalized {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "оценить можно только завершённую заявку")
	}
	techID, ok := engagedTechnician(req)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "по заявке нет исполнителя")
	}

	review, err := entity.NewReview(req.ID, clientID, techID, input.Rating, input.Comment)
	if err != nil {
		return nil, err
	}

	if _, err := s.deps.Reviews.Create(ctx, review); err != nil {
		log.WithError(err).Error("Failed to create review")
		return nil, stepError("create_review", err)
	}

	updated, err := s.deps.Requests.UpdateStatus(ctx, req.ID, valueobject.RequestRated)
	if err != nil {
		log.WithError(err).Error("Failed to mark request rated")
		return nil, stepError("update_request_status", err)
	}

	result := s.patch(clientID, req, updated, nil)
	log.WithField("rating", input.Rating).Info("Request rated")
	return &result, nil
}

// CreateRequest публикует новую заявку и перезагружает хранилище клиента.
func (s *Service) CreateRequest(ctx context.Context, clientID int64, input CreateRequestInput) (*entity.ServiceRequest, error) {
	draft, err := entity.NewRequestDraft(clientID, input.Description, input.OfferedPrice)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	log := flowLog(clientID, 0, "create_request")

	created, err := s.deps.Requests.Create(ctx, draft)
	if err != nil {
		log.WithError(err).Error("Failed to create request")
		return nil, stepError("create_request", err)
	}

	scope := repository.RequestScope{Role: entity.RoleClient, ActorID: clientID}
	err = s.deps.Stores.Requests(clientID).Load(ctx, func(ctx context.Context) ([]entity.ServiceRequest, error) {
		return s.deps.Requests.List(ctx, scope)
	})
	if err != nil {
		// Заявка уже создана; подтянем её в хранилище без полной загрузки.
		log.WithError(err).Warn("Failed to reload requests after create")
		s.deps.Stores.Requests(clientID).ApplyCreated(*created)
	}

	log.WithField("request_id", created.ID).Info("Request created")
	return created, nil
}

// engagedTechnician - техник, с которым клиент договорился: автор последнего
// принятого или встречного предложения.
func engagedTechnician(req *entity.ServiceRequest) (int64, bool) {
	var best *entity.ServiceOffer
	for i := range req.Offers {
		o := &req.Offers[i]
		switch o.Status {
		case valueobject.OfferAcceptedByClient, valueobject.OfferAcceptedByTech, valueobject.OfferCounterByTech:
		default:
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) ||
			(o.CreatedAt.Equal(best.CreatedAt) && o.ID > best.ID) {
			best = o
		}
	}
	if best == nil {
		return 0, false
	}
	return best.TechnicianID, true
}
