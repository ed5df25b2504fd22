// Package wsstream streams live pool-occupancy snapshots to connected
// dashboard clients over WebSocket.
package wsstream

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Snapshot is one point-in-time view of pool occupancy, broadcast to every
// connected client.
type Snapshot struct {
	InFlight   int       `json:"in_flight"`
	QueueDepth int       `json:"queue_depth"`
	UsedPorts  []int     `json:"used_ports"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hub fans pool snapshots out to any number of WebSocket clients.
type Hub struct {
	log        *slog.Logger
	clients    map[*websocket.Conn]bool
	broadcast  chan Snapshot
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub builds a Hub. Call Run in its own goroutine to start fan-out.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Snapshot, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives registration, unregistration and broadcast. It blocks until ctx
// done would normally be passed in, but since every caller runs it for the
// lifetime of the process, it simply blocks forever; callers spawn it via go.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case snap := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteJSON(snap); err != nil {
					h.log.Warn("wsstream: write failed, dropping client", "error", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes a snapshot to every connected client.
func (h *Hub) Broadcast(snap Snapshot) {
	snap.Timestamp = time.Now()
	select {
	case h.broadcast <- snap:
	default:
		h.log.Warn("wsstream: broadcast channel full, dropping snapshot")
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("wsstream: upgrade failed", "error", err)
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
