package pushws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/goroutine"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

const (
	handshakeTimeout = 10 * time.Second
	pongWait         = 60 * time.Second
	readLimit        = 512 * 1024
	eventBuffer      = 64
)

// Source подписывается на push-канал по WebSocket. Каждая подписка -
// отдельное соединение, ограниченное одним актором.
type Source struct {
	url    string
	tokens rest.TokenSource
	dialer *websocket.Dialer
}

func NewSource(rawURL string, tokens rest.TokenSource) *Source {
	return &Source{
		url:    rawURL,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

var _ repository.EventSource = (*Source)(nil)

// Subscribe открывает соединение и возвращает канал событий. Канал
// закрывается при отмене ctx или разрыве соединения.
func (s *Source) Subscribe(ctx context.Context, actorID int64) (<-chan repository.Event, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "некорректный адрес push-канала")
	}
	q := u.Query()
	q.Set("actor_id", strconv.FormatInt(actorID, 10))
	u.RawQuery = q.Encode()

	header := http.Header{}
	token := rest.TokenFromContext(ctx)
	if token == "" && s.tokens != nil {
		if token, err = s.tokens.Token(ctx); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "не удалось получить токен")
		}
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, apperror.FromHTTPStatus(resp.StatusCode, "push-канал отклонил подключение")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeUpstream, "push-канал недоступен")
	}

	events := make(chan repository.Event, eventBuffer)
	log := logger.ForActor(actorID).WithField("component", "pushws")

	// Отмена ctx прерывает блокирующее чтение закрытием соединения.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})

	goroutine.SafeGo(func() {
		defer close(events)
		defer stop()
		defer conn.Close()

		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPingHandler(func(data string) error {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Warn("Push connection lost")
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))

			var ev repository.Event
			if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
				log.WithField("payload_size", len(raw)).Warn("Skipping malformed push frame")
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	})

	return events, nil
}
