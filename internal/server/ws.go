package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/hammycam/internal/reaction"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHub broadcasts motion events to WebSocket clients as JSON. It
// implements reaction.Reaction, so the pipeline pushes events into it
// like any other reaction.
type EventsHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewEventsHub creates an empty hub.
func NewEventsHub() *EventsHub {
	return &EventsHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// Name returns the reaction name.
func (h *EventsHub) Name() string {
	return "websocket"
}

// OnMotion sends the event to every connected client. Clients that
// fail to receive are dropped.
func (h *EventsHub) OnMotion(e reaction.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(e); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *EventsHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
