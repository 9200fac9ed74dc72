package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/dto"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/negotiation"
	"github.com/ignatzorin/techmarket-sync/internal/view"
)

// RequestSessions - хранилище заявок пользователя.
type RequestSessions interface {
	Snapshot(ctx context.Context, v view.Viewer) ([]entity.ServiceRequest, error)
	Load(ctx context.Context, v view.Viewer) error
}

type RequestCreator interface {
	CreateRequest(ctx context.Context, clientID int64, input negotiation.CreateRequestInput) (*entity.ServiceRequest, error)
}

type RequestHandler struct {
	sessions RequestSessions
	creator  RequestCreator
	pageSize int
}

func NewRequestHandler(sessions RequestSessions, creator RequestCreator, pageSize int) *RequestHandler {
	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	return &RequestHandler{sessions: sessions, creator: creator, pageSize: pageSize}
}

// Views обслуживает GET /api/requests/views?search=&sort=&status=&page=
func (h *RequestHandler) Views(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	sortKey, err := view.ParseSortKey(c.Query("sort"))
	if err != nil {
		response.Error(c, err)
		return
	}

	status, err := parseStatusQuery(c.Query("status"))
	if err != nil {
		response.BadRequest(c, "некорректный статус заявки")
		return
	}

	requests, err := h.sessions.Snapshot(userContext(c), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := view.Build(requests, viewer, view.Query{
		Search:   c.Query("search"),
		Sort:     sortKey,
		Status:   status,
		Page:     parseIntQuery(c, "page", 1),
		PageSize: h.pageSize,
	})
	response.Success(c, dto.ToViewsResponse(string(viewer.Role), sortKey, result))
}

// Reload обслуживает POST /api/requests/reload.
func (h *RequestHandler) Reload(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	if err := h.sessions.Load(userContext(c), viewer); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c)
}

// Create обслуживает POST /api/requests.
func (h *RequestHandler) Create(c *gin.Context) {
	viewer, err := currentViewer(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	created, err := h.creator.CreateRequest(userContext(c), viewer.ActorID, negotiation.CreateRequestInput{
		Description:  req.Description,
		OfferedPrice: req.OfferedPrice,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}
