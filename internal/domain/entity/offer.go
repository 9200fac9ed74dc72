package entity

import (
	"time"

	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

// ServiceOffer - ответ техника на заявку. После создания меняется только статус.
type ServiceOffer struct {
	ID            int64                   `json:"id"`
	RequestID     int64                   `json:"request_id"`
	TechnicianID  int64                   `json:"technician_id"`
	ProposedPrice float64                 `json:"proposed_price"`
	Message       string                  `json:"message"`
	Status        valueobject.OfferStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
}

// OfferDraft - тело запроса на создание предложения.
type OfferDraft struct {
	RequestID     int64                   `json:"request_id"`
	TechnicianID  int64                   `json:"technician_id"`
	ProposedPrice float64                 `json:"proposed_price"`
	Message       string                  `json:"message"`
	Status        valueobject.OfferStatus `json:"status"`
}

func NewOfferDraft(requestID, technicianID int64, proposedPrice float64, message string, status valueobject.OfferStatus) (*OfferDraft, error) {
	if requestID <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указана заявка")
	}
	if technicianID <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан техник")
	}
	if _, err := valueobject.NewPrice(proposedPrice); err != nil {
		return nil, err
	}
	if !status.IsTechnicianResponse() {
		return nil, apperror.New(apperror.ErrCodeValidation, "предложение создаётся только как ответ техника")
	}

	return &OfferDraft{
		RequestID:     requestID,
		TechnicianID:  technicianID,
		ProposedPrice: proposedPrice,
		Message:       message,
		Status:        status,
	}, nil
}

func (o *ServiceOffer) IsOwnedBy(technicianID int64) bool {
	return o.TechnicianID == technicianID
}
