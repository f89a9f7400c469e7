package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"wavecli/internal/colormap"
	apierrors "wavecli/internal/errors"
	"wavecli/internal/middleware"
)

// ColorHandler handles color mapping requests.
type ColorHandler struct {
	store        *colormap.Store
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewColorHandler creates a new color mapping handler.
func NewColorHandler(store *colormap.Store, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ColorHandler {
	return &ColorHandler{
		store:        store,
		logger:       logger.With(slog.String("component", "color_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the color mapping routes.
func (h *ColorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Get("/{variable}", h.GetVariable)

	return r
}

// List handles GET /api/colors.
func (h *ColorHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings := h.store.List()

	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"data":      mappings,
		"count":     len(mappings),
		"variables": h.store.Variables(),
	})
}

// GetVariable handles GET /api/colors/{variable}, returning the persisted
// value to color assignments for one variable.
func (h *ColorHandler) GetVariable(w http.ResponseWriter, r *http.Request) {
	variable := chi.URLParam(r, "variable")
	if variable == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("variable", "Variable name is required"))
		return
	}

	mappings := h.store.VariableMappings(variable)

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"variable": variable,
			"mappings": mappings,
		},
		"count": len(mappings),
	})
}

// Add handles POST /api/colors. Adding a mapping for an existing
// variable/value pair overwrites it.
func (h *ColorHandler) Add(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var mapping colormap.Mapping
	if err := render.DecodeJSON(r.Body, &mapping); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "adding color mapping",
		slog.String("request_id", reqID),
		slog.String("variable", mapping.Variable),
		slog.String("value", mapping.Value),
		slog.String("color", mapping.ColorHex),
	)

	if err := mapping.Validate(); err != nil {
		var colorErr *colormap.InvalidColorError
		if errors.As(err, &colorErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.NewValidationError(err.Error()))
		return
	}

	if err := h.store.Add(mapping); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("save color mappings", err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   mapping,
	})
}
