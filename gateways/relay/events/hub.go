package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cuecard/backend/pkg/gen"
)

// Message is the envelope pushed to connected frontends.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Hub fans relay events out to every connected websocket client. Clients are
// listeners only; inbound frames are read and dropped to service control
// messages.
type Hub struct {
	upgrader websocket.Upgrader
	ids      gen.UUIDGenerator
	log      *slog.Logger

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func NewHub(ids gen.UUIDGenerator, log *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The relay binds to loopback only; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ids:     ids,
		log:     log,
		clients: make(map[string]*websocket.Conn),
	}
}

func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := h.ids.Next().String()
	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()

	h.log.Info("event client connected", slog.String("client_id", id))

	go h.readLoop(id, conn)
}

func (h *Hub) readLoop(id string, conn *websocket.Conn) {
	defer h.drop(id)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Emit sends an event to every connected client. Clients whose write fails
// are dropped.
func (h *Hub) Emit(eventType string, data any) {
	payload, err := json.Marshal(Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Error("failed to marshal event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	conns := make(map[string]*websocket.Conn, len(h.clients))
	for id, conn := range h.clients {
		conns[id] = conn
	}
	h.mu.Unlock()

	for id, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug("dropping event client", slog.String("client_id", id), slog.String("error", err.Error()))
			h.drop(id)
		}
	}
}

// ClientCount reports connected listeners.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*websocket.Conn)
	h.mu.Unlock()

	for _, conn := range clients {
		_ = conn.Close()
	}
}

func (h *Hub) drop(id string) {
	h.mu.Lock()
	conn, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
	}
}
