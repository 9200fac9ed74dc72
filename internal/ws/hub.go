package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignatzorin/techmarket-sync/internal/goroutine"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
)

// Hub управляет браузерными WebSocket-клиентами, сгруппированными по актору.
type Hub struct {
	mu         sync.RWMutex
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
}

type message struct {
	actorID int64
	payload []byte
}

// envelope - контракт браузерного канала: "type" содержит имя события,
// "data" - полезную нагрузку.
type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		done:       make(chan struct{}),
	}
}

// Run запускает главный цикл хаба до отмены ctx. После выхода все
// клиенты отключены, а Register/BroadcastToUser больше не блокируются.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.actorID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToUser отправляет событие во все соединения актора.
func (h *Hub) BroadcastToUser(actorID int64, event string, data interface{}) error {
	raw, err := json.Marshal(envelope{Type: event, Data: data})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case <-h.done:
		return fmt.Errorf("ws: хаб остановлен")
	default:
	}

	select {
	case h.broadcast <- message{actorID: actorID, payload: raw}:
		return nil
	case <-h.done:
		return fmt.Errorf("ws: хаб остановлен")
	}
}

// Connections возвращает число открытых соединений актора.
func (h *Hub) Connections(actorID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[actorID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.actorID]; !ok {
		h.clients[client.actorID] = make(map[*Client]struct{})
	}
	h.clients[client.actorID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.actorID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			client.closeSend()
		}
		if len(clients) == 0 {
			delete(h.clients, client.actorID)
		}
	}
}

func (h *Hub) send(actorID int64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[actorID] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент отключается; снять его с учёта хаб сможет
			// только после выхода из RLock, поэтому закрытие асинхронное.
			logger.ForActor(actorID).Warn("WebSocket client too slow, disconnecting")
			c := client
			goroutine.SafeGo(c.Close)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for actorID, clients := range h.clients {
		for client := range clients {
			client.closeSend()
		}
		delete(h.clients, actorID)
	}
}
