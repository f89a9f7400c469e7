package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "wavecli/internal/errors"
	"wavecli/internal/middleware"
	"wavecli/internal/pipeline"
	"wavecli/internal/services"
)

// PipelineHandler handles cleaning pipeline requests. Runs started over
// HTTP are asynchronous; progress is pushed over the websocket hub and
// the run endpoints expose current state.
type PipelineHandler struct {
	service      *services.PipelineService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	params       *middleware.QueryParamValidator
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(service *services.PipelineService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PipelineHandler {
	return &PipelineHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "pipeline_handler")),
		errorHandler: errorHandler,
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the pipeline routes.
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/run", h.Run)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Post("/runs/{id}/cancel", h.CancelRun)
	r.Get("/steps", h.ListSteps)

	return r
}

// Run handles POST /api/pipeline/run. The run is accepted and executed in
// the background; the response carries the run ID for status polling and
// websocket correlation.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req services.RunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "starting pipeline run",
		slog.String("request_id", reqID),
		slog.String("step", req.Step),
		slog.String("dataset_path", req.DatasetPath),
	)

	runID, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "pipeline start rejected",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "accepted",
		"data": map[string]interface{}{
			"run_id": runID,
		},
	})
}

// ListRuns handles GET /api/pipeline/runs. Optional status and limit
// parameters narrow the listing.
func (h *PipelineHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	status, ok := h.params.ValidateEnum(w, r, "status", []string{
		string(pipeline.RunStatusPending),
		string(pipeline.RunStatusRunning),
		string(pipeline.RunStatusCompleted),
		string(pipeline.RunStatusFailed),
		string(pipeline.RunStatusCancelled),
	}, "")
	if !ok {
		return
	}
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, 500, 0)
	if !ok {
		return
	}

	runs := h.service.List()

	if status != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if string(run.CurrentStatus()) == status {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   runs,
		"count":  len(runs),
	})
}

// GetRun handles GET /api/pipeline/runs/{id}.
func (h *PipelineHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.service.Status(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   state,
	})
}

// CancelRun handles POST /api/pipeline/runs/{id}/cancel.
func (h *PipelineHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	id := chi.URLParam(r, "id")

	h.logger.InfoContext(r.Context(), "cancelling pipeline run",
		slog.String("request_id", reqID),
		slog.String("run_id", id),
	)

	if err := h.service.Cancel(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"run_id":    id,
			"cancelled": true,
		},
	})
}

// ListSteps handles GET /api/pipeline/steps.
func (h *PipelineHandler) ListSteps(w http.ResponseWriter, r *http.Request) {
	steps := h.service.Steps()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   steps,
		"count":  len(steps),
	})
}
