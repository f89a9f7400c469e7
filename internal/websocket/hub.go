package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message types pushed to connected clients. Pipeline events carry their own
// type string (see the pipeline broadcaster); these cover the hub's own
// housekeeping messages.
const (
	TypeConnection = "connection"
	TypeError      = "error"
)

const (
	broadcastBuffer = 256
	statsInterval   = 30 * time.Second
)

// HubStats is a point-in-time snapshot of hub activity, exposed through the
// health endpoint.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
}

// Hub fans analysis and pipeline events out to connected websocket clients.
// The Run goroutine owns the clients map; registration, removal and
// broadcasts arrive on channels so callers never touch it directly.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu               sync.RWMutex
	totalConnections int64
	messagesSent     int64
	running          bool

	quit      chan struct{}
	statsQuit chan struct{}

	logger *slog.Logger
}

// NewHub creates a hub. Call Start before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		statsQuit:  make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket")),
	}
}

// Start launches the hub's event loop and the periodic stats reporter.
// Calling Start on a running hub is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	go h.reportStats()
	h.logger.Info("websocket hub started")
}

// Stop shuts the event loop down and closes every client send channel.
// Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	close(h.statsQuit)

	h.mu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	h.logger.Info("websocket hub stopped")
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-h.quit:
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.totalConnections++
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("active_clients", active))
	GetOTelMetrics().RecordConnection(context.Background())

	welcome := map[string]interface{}{
		"type": TypeConnection,
		"data": map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if payload, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client]
	if known {
		delete(h.clients, client)
		close(client.send)
	}
	active := len(h.clients)
	h.mu.Unlock()

	if known {
		h.logger.Info("websocket client disconnected",
			slog.String("client_id", client.id),
			slog.Int("active_clients", active))
	}
}

// fanOut delivers a message to every client. Clients whose send buffer is
// full are dropped so one stalled reader cannot back the hub up.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	var dropped []*Client
	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			dropped = append(dropped, client)
		}
	}

	h.mu.Lock()
	for _, client := range dropped {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
	}
	h.messagesSent += int64(len(targets) - len(dropped))
	h.mu.Unlock()

	if len(dropped) > 0 {
		h.logger.Warn("dropped slow websocket clients",
			slog.Int("count", len(dropped)))
		GetOTelMetrics().RecordDroppedClients(context.Background(), len(dropped))
	}
}

// BroadcastUpdate sends a typed event envelope to all connected clients.
// Empty subtype and action are omitted from the payload. The enqueue is
// non-blocking; if the broadcast queue is full the message is dropped.
func (h *Hub) BroadcastUpdate(eventType, subtype, action string, data interface{}) {
	message := map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if subtype != "" {
		message["subtype"] = subtype
	}
	if action != "" {
		message["action"] = action
	}
	h.broadcastJSON(message)
}

// BroadcastError pushes an error notification to all clients.
func (h *Hub) BroadcastError(code, message string) {
	h.broadcastJSON(map[string]interface{}{
		"type": TypeError,
		"data": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) broadcastJSON(message map[string]interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("websocket message marshal failed",
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("websocket broadcast queue full, message dropped")
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports cumulative hub activity.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
	}
}

func (h *Hub) reportStats() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := h.Stats()
			h.logger.Debug("websocket hub stats",
				slog.Int("active_clients", stats.ActiveClients),
				slog.Int64("total_connections", stats.TotalConnections),
				slog.Int64("messages_sent", stats.MessagesSent))
		case <-h.statsQuit:
			return
		}
	}
}
