package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ignatzorin/techmarket-sync/internal/goroutine"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 4 * 1024
)

// Client представляет одно подключение WebSocket.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	actorID   int64
	send      chan []byte
	closeOnce sync.Once
	sendOnce  sync.Once
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, actorID int64) *Client {
	return &Client{
		conn:    conn,
		hub:     hub,
		actorID: actorID,
		send:    make(chan []byte, 16),
	}
}

// Run обслуживает соединение до его закрытия или отмены ctx.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGo(c.writePump)

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.readPump()
}

// Close снимает клиента с учёта и закрывает соединение.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

// closeSend вызывается только хабом под его мьютексом.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

// readPump только поддерживает соединение: браузер ничего не присылает,
// кроме pong и закрытия.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.ForActor(c.actorID).WithError(err).Debug("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
