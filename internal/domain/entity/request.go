package entity

import (
	"strings"
	"time"

	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/validation"
)

// ServiceRequest - заявка клиента на выполнение работ.
// Форма совпадает с ответом REST API и событиями push-канала.
type ServiceRequest struct {
	ID           int64                     `json:"id"`
	ClientID     int64                     `json:"client_id"`
	Description  string                    `json:"description"`
	OfferedPrice float64                   `json:"offered_price"`
	Status       valueobject.RequestStatus `json:"status"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	Offers       []ServiceOffer            `json:"offers,omitempty"`
}

// RequestDraft - данные новой заявки до того, как сервер присвоит ей id.
type RequestDraft struct {
	ClientID     int64   `json:"client_id"`
	Description  string  `json:"description"`
	OfferedPrice float64 `json:"offered_price"`
}

func NewRequestDraft(clientID int64, description string, offeredPrice float64) (*RequestDraft, error) {
	if clientID <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан клиент")
	}
	description = strings.TrimSpace(description)
	if err := validation.ValidateRequestDescription(description); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if _, err := valueobject.NewPrice(offeredPrice); err != nil {
		return nil, err
	}
	if err := validation.ValidatePriceCeiling(offeredPrice); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	return &RequestDraft{
		ClientID:     clientID,
		Description:  description,
		OfferedPrice: offeredPrice,
	}, nil
}

func (r *ServiceRequest) IsOwnedBy(userID int64) bool {
	return r.ClientID == userID
}

func (r *ServiceRequest) Price() valueobject.Price {
	return valueobject.Price(r.OfferedPrice)
}

// IsOfferStage сообщает, что техник уже ответил на заявку: среди предложений
// есть его предложение со статусом ответа техника.
func (r *ServiceRequest) IsOfferStage(technicianID int64) bool {
	for i := range r.Offers {
		o := &r.Offers[i]
		if o.TechnicianID == technicianID && o.Status.IsTechnicianResponse() {
			return true
		}
	}
	return false
}

// HasTechnicianResponses сообщает, что хотя бы один техник ответил на заявку.
func (r *ServiceRequest) HasTechnicianResponses() bool {
	for i := range r.Offers {
		if r.Offers[i].Status.IsTechnicianResponse() {
			return true
		}
	}
	return false
}

// ActiveOffer возвращает действующее предложение техника: самое позднее
// по created_at, при равенстве - с большим id.
func (r *ServiceRequest) ActiveOffer(technicianID int64) (*ServiceOffer, bool) {
	var active *ServiceOffer
	for i := range r.Offers {
		o := &r.Offers[i]
		if o.TechnicianID != technicianID {
			continue
		}
		if active == nil || o.CreatedAt.After(active.CreatedAt) ||
			(o.CreatedAt.Equal(active.CreatedAt) && o.ID > active.ID) {
			active = o
		}
	}
	return active, active != nil
}

// FindOffer ищет предложение по id.
func (r *ServiceRequest) FindOffer(offerID int64) (*ServiceOffer, bool) {
	for i := range r.Offers {
		if r.Offers[i].ID == offerID {
			return &r.Offers[i], true
		}
	}
	return nil, false
}

// WithOffer возвращает копию заявки, в которой предложение с тем же id
// заменено на offer (или добавлено в конец).
func (r ServiceRequest) WithOffer(offer ServiceOffer) ServiceRequest {
	offers := make([]ServiceOffer, 0, len(r.Offers)+1)
	replaced := false
	for _, o := range r.Offers {
		if o.ID == offer.ID {
			offers = append(offers, offer)
			replaced = true
			continue
		}
		offers = append(offers, o)
	}
	if !replaced {
		offers = append(offers, offer)
	}
	r.Offers = offers
	return r
}

// Clone копирует заявку вместе со срезом предложений.
func (r ServiceRequest) Clone() ServiceRequest {
	if r.Offers != nil {
		r.Offers = append([]ServiceOffer(nil), r.Offers...)
	}
	return r
}
