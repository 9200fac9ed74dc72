package pushws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/pushws"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func TestSubscribe_DeliversEventsAndClosesOnDisconnect(t *testing.T) {
	type handshake struct {
		actor string
		auth  string
	}
	seen := make(chan handshake, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- handshake{actor: r.URL.Query().Get("actor_id"), auth: r.Header.Get("Authorization")}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"request:created","data":{"id":7}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message:created","data":{"id":1,"chat_id":2}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	src := pushws.NewSource(wsURL(srv), rest.StaticToken("svc"))
	events, err := src.Subscribe(context.Background(), 42)
	require.NoError(t, err)

	hs := <-seen
	assert.Equal(t, "42", hs.actor)
	assert.Equal(t, "Bearer svc", hs.auth)

	var got []repository.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, repository.EventRequestCreated, got[0].Type)
	assert.JSONEq(t, `{"id":7}`, string(got[0].Data))
	assert.Equal(t, repository.EventMessageCreated, got[1].Type)
}

func TestSubscribe_ContextCancelClosesChannel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := pushws.NewSource(wsURL(srv), nil).Subscribe(rest.WithToken(ctx, "user"), 1)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed after cancel")
	}
}

func TestSubscribe_RejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := pushws.NewSource(wsURL(srv), nil).Subscribe(context.Background(), 1)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}
