package negotiation

import (
	"context"
	"strings"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/validation"
)

const (
	acceptMessage = "Готов выполнить работу за предложенную цену"
	rejectMessage = "Техник отказался от заявки"
)

type CounterOfferInput struct {
	ProposedPrice float64
	Reason        string
}

// response - ответ техника, который превращается в предложение.
type response struct {
	flow       string
	status     valueobject.OfferStatus
	price      func(r *entity.ServiceRequest) float64
	message    string
	notifyText string
}

// TechnicianAccept: техник соглашается на цену клиента.
func (s *Service) TechnicianAccept(ctx context.Context, technicianID, requestID int64) (*entity.ServiceRequest, error) {
	return s.respond(ctx, technicianID, requestID, response{
		flow:       "technician_accept",
		status:     valueobject.OfferAcceptedByTech,
		price:      func(r *entity.ServiceRequest) float64 { return r.OfferedPrice },
		message:    acceptMessage,
		notifyText: "Техник принял вашу заявку",
	})
}

// TechnicianReject: техник отказывается от заявки. reason необязателен.
func (s *Service) TechnicianReject(ctx context.Context, technicianID, requestID int64, reason string) (*entity.ServiceRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = rejectMessage
	} else if err := validation.ValidateOfferMessage(reason); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	return s.respond(ctx, technicianID, requestID, response{
		flow:       "technician_reject",
		status:     valueobject.OfferRejectedByTech,
		price:      func(r *entity.ServiceRequest) float64 { return r.OfferedPrice },
		message:    reason,
		notifyText: "Техник отклонил вашу заявку",
	})
}

// CounterOffer: техник предлагает свою цену. Цена должна быть выше цены
// клиента, причина обязательна; при нарушении сеть не вызывается.
func (s *Service) CounterOffer(ctx context.Context, technicianID, requestID int64, input CounterOfferInput) (*entity.ServiceRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину встречного предложения")
	}
	if err := validation.ValidateOfferMessage(reason); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if _, err := valueobject.NewPrice(input.ProposedPrice); err != nil {
		return nil, err
	}
	if err := validation.ValidatePriceCeiling(input.ProposedPrice); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	// Цену клиента проверяем по локальной копии до начала сценария:
	// отказ по валидации не должен порождать запросов. Если заявки в
	// хранилище нет, цена клиента известна только после чтения с сервера
	// (lookup в respond), и отказ происходит до первого изменяющего вызова.
	if local, ok := s.deps.Stores.Requests(technicianID).Get(requestID); ok {
		if !valueobject.Price(input.ProposedPrice).Exceeds(local.Price()) {
			return nil, counterTooLow()
		}
	}

	return s.respond(ctx, technicianID, requestID, response{
		flow:   "counter_offer",
		status: valueobject.OfferCounterByTech,
		price: func(r *entity.ServiceRequest) float64 {
			return input.ProposedPrice
		},
		message:    reason,
		notifyText: "Техник предложил свою цену по заявке",
	})
}

func counterTooLow() error {
	return apperror.New(apperror.ErrCodeValidation, "встречная цена должна быть выше цены клиента")
}

// respond - общий сценарий ответа техника:
// создать предложение, при необходимости выставить ему статус, выставить
// статус заявке, уведомить клиента, обновить хранилище.
func (s *Service) respond(ctx context.Context, technicianID, requestID int64, resp response) (*entity.ServiceRequest, error) {
	release, err := s.begin(technicianID, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	log := flowLog(technicianID, requestID, resp.flow)

	req, err := s.lookup(ctx, technicianID, requestID)
	if err != nil {
		return nil, err
	}
	if !respondable(req.Status) {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "заявка уже не принимает ответы техников")
	}

	price := resp.price(req)
	if resp.status == valueobject.OfferCounterByTech && !valueobject.Price(price).Exceeds(req.Price()) {
		return nil, counterTooLow()
	}

	draft, err := entity.NewOfferDraft(req.ID, technicianID, price, resp.message, resp.status)
	if err != nil {
		return nil, err
	}

	offer, err := s.deps.Offers.Create(ctx, draft, s.deps.NewKey())
	if err != nil {
		log.WithError(err).Error("Failed to create offer")
		return nil, stepError("create_offer", err)
	}

	if offer.Status != resp.status {
		updatedOffer, err := s.deps.Offers.UpdateStatus(ctx, offer.ID, resp.status)
		if err != nil {
			log.WithError(err).Error("Failed to set offer status")
			s.compensate(ctx, log, technicianID, req.ID, offer.ID, err)
			return nil, stepError("update_offer_status", err)
		}
		offer = updatedOffer
	}

	updated, err := s.deps.Requests.UpdateStatus(ctx, req.ID, resp.status.RequestStatus())
	if err != nil {
		log.WithError(err).Error("Failed to set request status")
		s.compensate(ctx, log, technicianID, req.ID, offer.ID, err)
		return nil, stepError("update_request_status", err)
	}

	s.notify(ctx, log, req.ClientID, req.ID, resp.notifyText)

	result := s.patch(technicianID, req, updated, offer)
	log.WithField("offer_id", offer.ID).Info("Technician response applied")
	return &result, nil
}

// respondable - статусы, в которых техник ещё может ответить на заявку.
func respondable(st valueobject.RequestStatus) bool {
	switch st {
	case valueobject.RequestPending,
		valueobject.RequestRejectedByTech,
		valueobject.RequestCounterByTech,
		valueobject.RequestAcceptedByTech,
		valueobject.RequestRejectedByClient:
		return true
	}
	return false
}
