package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/techmarket-sync/internal/ws"
)

func startHub(t *testing.T) *ws.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)
	return hub
}

func serve(t *testing.T, hub *ws.Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor"), 10, 64)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := ws.NewClient(conn, hub, actorID)
		hub.Register(client)
		client.Run(r.Context())
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base string, actorID int64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?actor="+strconv.FormatInt(actorID, 10), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_BroadcastReachesOnlyTargetActor(t *testing.T) {
	hub := startHub(t)
	base := serve(t, hub)

	mine := dial(t, base, 7)
	other := dial(t, base, 8)
	require.Eventually(t, func() bool {
		return hub.Connections(7) == 1 && hub.Connections(8) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastToUser(7, "request:updated", map[string]int{"id": 3}))

	_ = mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := mine.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"request:updated","data":{"id":3}}`, string(raw))

	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "actor 8 must not receive actor 7 events")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	base := serve(t, hub)

	conn := dial(t, base, 5)
	require.Eventually(t, func() bool { return hub.Connections(5) == 1 }, 2*time.Second, 10*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	require.Eventually(t, func() bool { return hub.Connections(5) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.Error(t, hub.BroadcastToUser(1, "x", nil))
}
