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

// AnalysisHandler handles wave transition analysis requests.
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Analyze)
	r.Post("/batch", h.AnalyzeBatch)

	return r
}

// Analyze handles POST /api/analyze.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req services.AnalysisRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "running analysis",
		slog.String("request_id", reqID),
		slog.String("variable", req.Variable),
		slog.String("wave_config", req.WaveConfig),
		slog.String("dataset", req.Dataset),
	)

	result, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "analysis failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("variable", req.Variable),
		)
		h.errorHandler.HandleError(w, r, h.mapServiceError(err, req.Dataset))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// AnalyzeBatch handles POST /api/analyze/batch. Each variable is analyzed
// independently; per-variable failures are reported inline rather than
// failing the batch.
func (h *AnalysisHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req services.BatchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "running batch analysis",
		slog.String("request_id", reqID),
		slog.Int("variables", len(req.Variables)),
		slog.String("wave_config", req.WaveConfig),
	)

	entries, err := h.service.AnalyzeBatch(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "batch analysis failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, h.mapServiceError(err, req.Dataset))
		return
	}

	failed := 0
	for _, entry := range entries {
		if entry.Error != "" {
			failed++
		}
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
		"failed": failed,
	})
}

// mapServiceError translates service sentinels into API errors; typed
// domain errors pass through for the central handler to map.
func (h *AnalysisHandler) mapServiceError(err error, dataset string) error {
	switch {
	case errors.Is(err, services.ErrDatasetNotFound):
		return apierrors.DatasetNotFoundError(dataset, err)
	case errors.Is(err, services.ErrInvalidDatasetName):
		return apierrors.ErrValidation("dataset", err.Error())
	default:
		return err
	}
}
