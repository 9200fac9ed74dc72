package dto

import "github.com/ignatzorin/techmarket-sync/internal/view"

type CreateRequestRequest struct {
	Description  string  `json:"description" binding:"required"`
	OfferedPrice float64 `json:"offered_price" binding:"required,gt=0"`
}

type RejectRequestRequest struct {
	Reason string `json:"reason"`
}

// CounterOfferRequest - цена и причина проверяются повторно в сценарии,
// который сравнивает цену с предложенной клиентом.
type CounterOfferRequest struct {
	ProposedPrice float64 `json:"proposed_price" binding:"required"`
	Reason        string  `json:"reason" binding:"required"`
}

type RateRequest struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type EnsureAccountRequest struct {
	Specialty string `json:"specialty"`
}

// ViewsResponse - четыре корзины заявок текущего пользователя.
type ViewsResponse struct {
	Role   string      `json:"role"`
	Sort   string      `json:"sort"`
	Views  view.Result `json:"views"`
	Counts Counts      `json:"counts"`
}

type Counts struct {
	New        int `json:"new"`
	Offers     int `json:"offers"`
	InProgress int `json:"in_progress"`
	Closed     int `json:"closed"`
}

func ToViewsResponse(role string, sort view.SortKey, r view.Result) ViewsResponse {
	return ViewsResponse{
		Role:  role,
		Sort:  string(sort),
		Views: r,
		Counts: Counts{
			New:        r.New.Total,
			Offers:     r.Offers.Total,
			InProgress: r.InProgress.Total,
			Closed:     r.Closed.Total,
		},
	}
}

type NotificationTargetResponse struct {
	RequestID int64 `json:"request_id"`
}
