package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only send heartbeats.
	maxMessageSize = 512

	sendBuffer = 256
)

// Client is one websocket connection managed by the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient wraps an upgraded connection. traceID may be empty; when set it
// is carried into every log line for the connection.
func NewClient(hub *Hub, conn *websocket.Conn, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	logger = logger.With(slog.String("client_id", id))
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr().String(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client's generated identifier.
func (c *Client) ID() string {
	return c.id
}

// ServeWS registers an upgraded connection with the hub and starts its read
// and write pumps.
func ServeWS(hub *Hub, conn *websocket.Conn, traceID string) *Client {
	client := NewClient(hub, conn, traceID, hub.logger)
	hub.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

// readPump reads messages from the peer until the connection drops. It owns
// all reads on the connection; the pong handler keeps the deadline fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		GetOTelMetrics().RecordDisconnection(context.Background(), time.Since(c.connectedAt))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed",
					slog.String("error", err.Error()))
			}
			return
		}
		GetOTelMetrics().RecordMessageReceived(context.Background(), len(message))
		c.handleMessage(message)
	}
}

// handleMessage processes a message sent by the client. Heartbeats refresh
// the read deadline; anything else is logged and discarded.
func (c *Client) handleMessage(message []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.logger.Debug("discarding malformed client message",
			slog.String("error", err.Error()))
		return
	}

	switch envelope.Type {
	case "heartbeat":
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.logger.Debug("ignoring client message",
			slog.String("type", envelope.Type))
	}
}

// writePump forwards queued messages to the peer and keeps the connection
// alive with periodic pings. It owns all writes on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed",
					slog.String("error", err.Error()))
				return
			}
			GetOTelMetrics().RecordMessageSent(context.Background(), len(message))

			// Drain whatever queued up while that write was in flight.
			pending := len(c.send)
			for i := 0; i < pending; i++ {
				next, ok := <-c.send
				if !ok {
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
				GetOTelMetrics().RecordMessageSent(context.Background(), len(next))
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
