package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/http/middleware"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/dto"
	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/service"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/account"
)

type AccountEnsurer interface {
	Execute(ctx context.Context, input account.EnsureUserInput) (*entity.User, error)
}

type AccountHandler struct {
	accounts AccountEnsurer
}

func NewAccountHandler(accounts AccountEnsurer) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Ensure обслуживает POST /api/account/ensure: создаёт учётную запись по
// токену провайдера или возвращает существующую.
func (h *AccountHandler) Ensure(c *gin.Context) {
	raw, _ := c.Get(middleware.ContextClaimsKey)
	claims, ok := raw.(*service.IdentityClaims)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	var req dto.EnsureAccountRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}

	user, err := h.accounts.Execute(userContext(c), account.EnsureUserInput{
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		Name:       claims.Name,
		Role:       claims.Role,
		Specialty:  req.Specialty,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}
