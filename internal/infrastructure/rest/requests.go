package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
)

type statusBody struct {
	Status uint8 `json:"status"`
}

// RequestRepository - заявки через REST API.
type RequestRepository struct {
	client *Client
}

func NewRequestRepository(client *Client) *RequestRepository {
	return &RequestRepository{client: client}
}

var _ repository.RequestRepository = (*RequestRepository)(nil)

// List: клиент видит только свои заявки, техник и администратор - все.
func (r *RequestRepository) List(ctx context.Context, scope repository.RequestScope) ([]entity.ServiceRequest, error) {
	query := url.Values{}
	if scope.Role == entity.RoleClient {
		query.Set("client_id", strconv.FormatInt(scope.ActorID, 10))
	}
	var out []entity.ServiceRequest
	if err := r.client.do(ctx, http.MethodGet, "/requests", query, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RequestRepository) FindByID(ctx context.Context, id int64) (*entity.ServiceRequest, error) {
	var out entity.ServiceRequest
	if err := r.client.do(ctx, http.MethodGet, idPath("/requests/%d", id), nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RequestRepository) Create(ctx context.Context, draft *entity.RequestDraft) (*entity.ServiceRequest, error) {
	var out entity.ServiceRequest
	if err := r.client.do(ctx, http.MethodPost, "/requests", nil, draft, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, id int64, status valueobject.RequestStatus) (*entity.ServiceRequest, error) {
	var out entity.ServiceRequest
	body := statusBody{Status: uint8(status.Wire())}
	if err := r.client.do(ctx, http.MethodPatch, idPath("/requests/%d/status", id), nil, body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// OfferRepository - предложения техников через REST API.
type OfferRepository struct {
	client *Client
}

func NewOfferRepository(client *Client) *OfferRepository {
	return &OfferRepository{client: client}
}

var _ repository.OfferRepository = (*OfferRepository)(nil)

func (r *OfferRepository) Create(ctx context.Context, draft *entity.OfferDraft, idempotencyKey string) (*entity.ServiceOffer, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var out entity.ServiceOffer
	if err := r.client.do(ctx, http.MethodPost, "/offers", nil, draft, &out, headers); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *OfferRepository) UpdateStatus(ctx context.Context, id int64, status valueobject.OfferStatus) (*entity.ServiceOffer, error) {
	var out entity.ServiceOffer
	body := statusBody{Status: uint8(status.Wire())}
	if err := r.client.do(ctx, http.MethodPatch, idPath("/offers/%d/status", id), nil, body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *OfferRepository) Delete(ctx context.Context, id int64) error {
	return r.client.do(ctx, http.MethodDelete, idPath("/offers/%d", id), nil, nil, nil, nil)
}

type NotificationRepository struct {
	client *Client
}

func NewNotificationRepository(client *Client) *NotificationRepository {
	return &NotificationRepository{client: client}
}

var _ repository.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) (*entity.Notification, error) {
	var out entity.Notification
	if err := r.client.do(ctx, http.MethodPost, "/notifications", nil, n, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id int64) (*entity.Notification, error) {
	var out entity.Notification
	if err := r.client.do(ctx, http.MethodGet, idPath("/notifications/%d", id), nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

type ReviewRepository struct {
	client *Client
}

func NewReviewRepository(client *Client) *ReviewRepository {
	return &ReviewRepository{client: client}
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

func (r *ReviewRepository) Create(ctx context.Context, review *entity.Review) (*entity.Review, error) {
	var out entity.Review
	if err := r.client.do(ctx, http.MethodPost, "/reviews", nil, review, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
