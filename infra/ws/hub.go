// Package ws pushes live telemetry to WebSocket clients and accepts
// simulator commands from them.
package ws

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/infra/logger"
)

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket clients and broadcasts messages. The latest battery
// state is kept so new clients do not wait for the next tick.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	last    []byte
	dropped atomic.Int64
	log     logger.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		log:     logger.New("ws_hub"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.last != nil {
		select {
		case c.send <- h.last:
		default:
		}
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of messages skipped for slow clients.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// PublishTelemetry broadcasts a battery_state message.
func (h *Hub) PublishTelemetry(t model.Telemetry) error {
	msg, err := NewEnvelope(TypeBatteryState, t)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.last = msg
	h.mu.Unlock()
	h.Broadcast(msg)
	return nil
}

// PublishSessionEvent broadcasts a session_event message.
func (h *Hub) PublishSessionEvent(ev model.SessionEvent) error {
	msg, err := NewEnvelope(TypeSessionEvent, ev)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
