package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "wavecli/internal/errors"
	"wavecli/internal/middleware"
	"wavecli/internal/services"
)

// WaveHandler handles wave definition and resolution requests.
type WaveHandler struct {
	service      *services.WaveService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewWaveHandler creates a new wave handler.
func NewWaveHandler(service *services.WaveService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WaveHandler {
	return &WaveHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "wave_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the wave routes.
func (h *WaveHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Get("/resolve", h.Resolve)

	return r
}

// List handles GET /api/waves.
func (h *WaveHandler) List(w http.ResponseWriter, r *http.Request) {
	waveList := h.service.List()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   waveList,
		"count":  len(waveList),
	})
}

// Add handles POST /api/waves. Accepts either a wave number ("4") or a
// wave name ("Wave4"), with an optional column prefix overriding the
// W<N>_ convention; an existing definition with the same number is
// overwritten.
func (h *WaveHandler) Add(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req services.AddWaveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "adding wave definition",
		slog.String("request_id", reqID),
		slog.String("wave", req.Wave),
	)

	wave, err := h.service.Add(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("wave", err.Error()))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   wave,
	})
}

// Resolve handles GET /api/waves/resolve?config=w1_to_w3. An optional
// variable parameter previews the derived column pair.
func (h *WaveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("config")
	if token == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("config", "Wave config parameter is required"))
		return
	}

	resolution, err := h.service.Resolve(r.Context(), token)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"token":  resolution.Token,
		"source": resolution.Source,
		"target": resolution.Target,
		"label":  resolution.Label(),
	}
	if variable := r.URL.Query().Get("variable"); variable != "" {
		sourceCol, targetCol := resolution.Columns(variable)
		data["variable"] = variable
		data["source_column"] = sourceCol
		data["target_column"] = targetCol
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}
