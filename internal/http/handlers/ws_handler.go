package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/techmarket-sync/internal/interface/http/response"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/service"
	"github.com/ignatzorin/techmarket-sync/internal/view"
	"github.com/ignatzorin/techmarket-sync/internal/ws"
)

// WSHandler отвечает за браузерные WebSocket соединения.
type WSHandler struct {
	hub      *ws.Hub
	sessions *service.SessionService
	tokens   *service.TokenManager
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins разрешает
// любой origin.
func NewWSHandler(hub *ws.Hub, sessions *service.SessionService, tokens *service.TokenManager, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WSHandler{
		hub:      hub,
		sessions: sessions,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "access токен обязателен")
		return
	}

	actorID, role, err := h.tokens.ParseAccess(token)
	if err != nil {
		response.Unauthorized(c, "невалидный access токен")
		return
	}
	viewer := view.Viewer{Role: role, ActorID: actorID}

	release, err := h.sessions.Attach(c.Request.Context(), viewer, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.ForActor(actorID).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, h.hub, actorID)
	h.hub.Register(client)
	if err := h.sessions.SendSnapshot(actorID); err != nil {
		logger.ForActor(actorID).WithError(err).Warn("Failed to send initial snapshot")
	}

	client.Run(c.Request.Context())
}
