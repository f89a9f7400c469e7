package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"wavecli/internal/infrastructure"
	ws "wavecli/internal/websocket"
)

// WebSocketHandler upgrades HTTP connections and hands them to the hub.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new websocket handler.
func NewWebSocketHandler(hub *ws.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The service runs on localhost alongside its frontend, so
			// cross origin upgrades are accepted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "websocket_handler")),
	}
}

// Handle serves GET /ws. On upgrade failure gorilla has already written
// the HTTP error response.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	client := ws.ServeWS(h.hub, conn, traceID)

	h.logger.InfoContext(r.Context(), "websocket connection established",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
