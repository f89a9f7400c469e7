package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/render"

	"wavecli/internal/config"
	ws "wavecli/internal/websocket"
)

// HealthHandler reports service health for GET /healthz.
type HealthHandler struct {
	hub       *ws.Hub
	paths     *config.Paths
	version   string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(hub *ws.Hub, paths *config.Paths, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		hub:       hub,
		paths:     paths,
		version:   version,
		startedAt: time.Now(),
		logger:    logger.With(slog.String("component", "health_handler")),
	}
}

// Health handles GET /healthz. Reports degraded rather than failing when
// the data directory is missing; the process itself is still alive.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	if _, err := os.Stat(h.paths.DataDir); err != nil {
		checks["data_dir"] = "missing"
		status = "degraded"
	} else {
		checks["data_dir"] = "ok"
	}

	if _, err := os.Stat(h.paths.SettingsDir); err != nil {
		checks["settings_dir"] = "missing"
		status = "degraded"
	} else {
		checks["settings_dir"] = "ok"
	}

	response := map[string]interface{}{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"checks":         checks,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if h.hub != nil {
		response["websocket"] = h.hub.Stats()
	}

	render.JSON(w, r, response)
}
