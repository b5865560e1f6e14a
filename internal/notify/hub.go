// Package notify provides WebSocket-based push notifications to session
// subscribers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const notifyTimeout = 5 * time.Second

// Event is the wire frame pushed to subscribers.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks the live WebSocket subscriber per session. A session has at
// most one subscriber; a newer connection replaces an older one.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

// Get returns the active connection for a session, or nil.
func (h *Hub) Get(sessionID string) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[sessionID]
}

// Register adds a subscriber for a session, replacing any existing one.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.conns[sessionID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "subscriber replaced")
	}
	h.conns[sessionID] = conn
	slog.Info("Notification subscriber registered", "session_id", sessionID)
}

// Unregister removes a subscriber, unless it was already replaced.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.conns[sessionID]; ok && current == conn {
		delete(h.conns, sessionID)
		slog.Info("Notification subscriber unregistered", "session_id", sessionID)
	}
}

// Notify pushes an event to a session's subscriber, best effort. Missing
// subscribers, marshal failures, and write failures are all swallowed:
// notifications are not part of the correctness contract of execution.
func (h *Hub) Notify(sessionID, event string, data any) {
	conn := h.Get(sessionID)
	if conn == nil {
		return
	}

	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		slog.Debug("Failed to marshal notification", "error", err, "session_id", sessionID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		slog.Debug("Failed to push notification", "error", err, "session_id", sessionID)
	}
}
