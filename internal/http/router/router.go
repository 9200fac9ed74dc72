package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/config"
	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/http/handlers"
	"github.com/ignatzorin/techmarket-sync/internal/http/middleware"
	"github.com/ignatzorin/techmarket-sync/internal/service"
)

// Handlers собирает все HTTP-хэндлеры шлюза.
type Handlers struct {
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler
	Requests     *handlers.RequestHandler
	Negotiation  *handlers.NegotiationHandler
	Chats        *handlers.ChatHandler
	Accounts     *handlers.AccountHandler
	Notification *handlers.NotificationHandler
}

func SetupRouter(cfg *config.Config, tokens *service.TokenManager, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	actionLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	accountGroup := api.Group("/account")
	accountGroup.Use(middleware.IdentityMiddleware(tokens), actionLimit)
	{
		accountGroup.POST("/ensure", h.Accounts.Ensure)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))

	requests := protected.Group("/requests")
	{
		requests.GET("/views", h.Requests.Views)
		requests.POST("/reload", actionLimit, h.Requests.Reload)
		requests.POST("", middleware.RequireRole(entity.RoleClient), actionLimit, h.Requests.Create)

		tech := requests.Group("/:id", middleware.IDValidator("id"), middleware.RequireRole(entity.RoleTechnician), actionLimit)
		tech.POST("/accept", h.Negotiation.Accept)
		tech.POST("/reject", h.Negotiation.Reject)
		tech.POST("/counter", h.Negotiation.Counter)

		client := requests.Group("/:id", middleware.IDValidator("id"), middleware.RequireRole(entity.RoleClient), actionLimit)
		client.POST("/offers/:offerId/accept", middleware.IDValidator("offerId"), h.Negotiation.AcceptOffer)
		client.POST("/offers/:offerId/reject", middleware.IDValidator("offerId"), h.Negotiation.RejectOffer)
		client.POST("/finalize", h.Negotiation.Finalize)
		client.POST("/rate", h.Negotiation.Rate)
	}

	chats := protected.Group("/chats/:id", middleware.IDValidator("id"))
	{
		chats.GET("/messages", h.Chats.Messages)
		chats.POST("/messages", actionLimit, h.Chats.Send)
		chats.DELETE("/watch", h.Chats.Close)
	}

	protected.GET("/notifications/:id/request", middleware.IDValidator("id"), h.Notification.Request)

	return r
}
