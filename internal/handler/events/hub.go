package events

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dvergara/docuchat/internal/service/conversation"
)

// outgoingEvent is the wire envelope pushed to every connected client.
type outgoingEvent struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Hub fans conversation notifications out to websocket clients. It
// implements conversation.Notifier.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub returns an empty notification hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// RegisterRoutes mounts the notification endpoint.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleWebSocket)
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	log.Printf("[events] client connected (%d active)", h.clientCount())

	// The channel is push-only; the read loop just detects disconnects.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Notify broadcasts a notification to every connected client. Clients that
// fail to receive are dropped.
func (h *Hub) Notify(n conversation.Notification) {
	event := outgoingEvent{
		Type:      n.Type,
		Payload:   n.Payload,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("[events] dropping client: %v", err)
			h.drop(conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, known := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if known {
		conn.Close()
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
