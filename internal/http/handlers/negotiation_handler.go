package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/dto"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/negotiation"
)

// Negotiator - сценарии согласования заявки.
type Negotiator interface {
	TechnicianAccept(ctx context.Context, technicianID, requestID int64) (*entity.ServiceRequest, error)
	TechnicianReject(ctx context.Context, technicianID, requestID int64, reason string) (*entity.ServiceRequest, error)
	CounterOffer(ctx context.Context, technicianID, requestID int64, input negotiation.CounterOfferInput) (*entity.ServiceRequest, error)
	ClientAccept(ctx context.Context, clientID, requestID, offerID int64) (*entity.ServiceRequest, error)
	ClientReject(ctx context.Context, clientID, requestID, offerID int64) (*entity.ServiceRequest, error)
	Finalize(ctx context.Context, clientID, requestID int64) (*entity.ServiceRequest, error)
	Rate(ctx context.Context, clientID, requestID int64, input negotiation.RateInput) (*entity.ServiceRequest, error)
}

type NegotiationHandler struct {
	flows Negotiator
}

func NewNegotiationHandler(flows Negotiator) *NegotiationHandler {
	return &NegotiationHandler{flows: flows}
}

// Accept обслуживает POST /api/requests/:id/accept (техник).
func (h *NegotiationHandler) Accept(c *gin.Context) {
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.TechnicianAccept(ctx, actorID, requestID)
	})
}

// Reject обслуживает POST /api/requests/:id/reject (техник). Тело необязательно.
func (h *NegotiationHandler) Reject(c *gin.Context) {
	var req dto.RejectRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.TechnicianReject(ctx, actorID, requestID, req.Reason)
	})
}

// Counter обслуживает POST /api/requests/:id/counter (техник).
func (h *NegotiationHandler) Counter(c *gin.Context) {
	var req dto.CounterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "укажите цену и причину встречного предложения")
		return
	}
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.CounterOffer(ctx, actorID, requestID, negotiation.CounterOfferInput{
			ProposedPrice: req.ProposedPrice,
			Reason:        req.Reason,
		})
	})
}

// AcceptOffer обслуживает POST /api/requests/:id/offers/:offerId/accept (клиент).
func (h *NegotiationHandler) AcceptOffer(c *gin.Context) {
	offerID := paramID(c, "offerId")
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.ClientAccept(ctx, actorID, requestID, offerID)
	})
}

// RejectOffer обслуживает POST /api/requests/:id/offers/:offerId/reject (клиент).
func (h *NegotiationHandler) RejectOffer(c *gin.Context) {
	offerID := paramID(c, "offerId")
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.ClientReject(ctx, actorID, requestID, offerID)
	})
}

// Finalize обслуживает POST /api/requests/:id/finalize (клиент).
func (h *NegotiationHandler) Finalize(c *gin.Context) {
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.Finalize(ctx, actorID, requestID)
	})
}

// Rate обслуживает POST /api/requests/:id/rate (клиент).
func (h *NegotiationHandler) Rate(c *gin.Context) {
	var req dto.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "оценка должна быть от 1 до 5")
		return
	}
	h.run(c, func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error) {
		return h.flows.Rate(ctx, actorID, requestID, negotiation.RateInput{Rating: req.Rating, Comment: req.Comment})
	})
}

func (h *NegotiationHandler) run(c *gin.Context, flow func(ctx context.Context, actorID, requestID int64) (*entity.ServiceRequest, error)) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	updated, err := flow(userContext(c), viewer.ActorID, paramID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, updated)
}
