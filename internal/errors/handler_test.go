package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/colormap"
	"wavecli/internal/dataset"
	"wavecli/internal/pipeline"
	"wavecli/internal/transitions"
	"wavecli/internal/waves"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.Default(), false)
}

func TestErrorToProblem_ContextErrors(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)

	tests := []struct {
		name string
		err  error
	}{
		{"deadline exceeded", context.DeadlineExceeded},
		{"cancelled", context.Canceled},
		{"wrapped deadline", fmt.Errorf("run analysis: %w", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, http.StatusGatewayTimeout, problem.Status)
			assert.Equal(t, TypeTimeout, problem.Type)
		})
	}
}

func TestErrorToProblem_WaveConfigError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/waves/resolve", nil)

	err := &waves.ConfigError{
		Token:     "w1_to_w1",
		Reason:    "source and target must differ",
		Available: []int{1, 2, 3},
	}

	problem := h.ErrorToProblem(fmt.Errorf("resolve wave config: %w", err), r)

	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeWaveConfig, problem.Type)
	assert.Equal(t, "w1_to_w1", problem.Extensions["token"])
	assert.Equal(t, []int{1, 2, 3}, problem.Extensions["registered_waves"])
	assert.Equal(t, "/api/waves/resolve", problem.Instance)
}

func TestErrorToProblem_UnknownWaveError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/waves/9", nil)

	err := &waves.UnknownWaveError{Number: 9, Available: []int{1, 2, 3}}
	problem := h.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, TypeWaveNotFound, problem.Type)
	assert.Equal(t, 9, problem.Extensions["wave_number"])
}

func TestErrorToProblem_ConfigWrappingUnknownWave(t *testing.T) {
	// A config token naming an unregistered wave produces a ConfigError
	// that wraps UnknownWaveError. The wrapping type wins: the client sent
	// a bad configuration, not a bad wave lookup.
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/waves/resolve", nil)

	inner := &waves.UnknownWaveError{Number: 7, Available: []int{1, 2, 3}}
	outer := &waves.ConfigError{
		Token:     "w1_to_w7",
		Reason:    inner.Error(),
		Available: []int{1, 2, 3},
	}

	problem := h.ErrorToProblem(outer, r)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeWaveConfig, problem.Type)
}

func TestErrorToProblem_FilterError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)

	err := &dataset.FilterError{
		Column: "region",
		Reason: "filter removed all data rows",
	}

	problem := h.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, TypeFilter, problem.Type)
	assert.Equal(t, "region", problem.Extensions["column"])
}

func TestErrorToProblem_ColumnNotFoundError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)

	err := dataset.NewColumnNotFoundError("W9_mood", []string{"W1_mood", "W2_mood", "W1_income"})
	problem := h.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, TypeColumnNotFound, problem.Type)
	assert.Equal(t, "W9_mood", problem.Extensions["column"])
	require.Contains(t, problem.Extensions, "suggestions")
	assert.NotEmpty(t, problem.Extensions["suggestions"])
}

func TestErrorToProblem_ColumnNotFound_NoSuggestions(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)

	err := dataset.NewColumnNotFoundError("zzz", []string{"W1_mood", "W2_mood"})
	problem := h.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.NotContains(t, problem.Extensions, "suggestions")
}

func TestErrorToProblem_DataValidationError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)

	tests := []struct {
		name       string
		err        *transitions.ValidationError
		wantColumn bool
	}{
		{
			name:       "column specific",
			err:        &transitions.ValidationError{Column: "W1_mood", Reason: "expected 2 to 50 distinct values, found 1"},
			wantColumn: true,
		},
		{
			name:       "pair level",
			err:        &transitions.ValidationError{Reason: "no rows with values in both columns"},
			wantColumn: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
			assert.Equal(t, TypeDataValidation, problem.Type)
			if tt.wantColumn {
				assert.Equal(t, tt.err.Column, problem.Extensions["column"])
			} else {
				assert.NotContains(t, problem.Extensions, "column")
			}
		})
	}
}

func TestErrorToProblem_InvalidColorError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/colors", nil)

	err := fmt.Errorf("add mapping: %w", &colormap.InvalidColorError{Color: "crimson"})
	problem := h.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, TypeDataValidation, problem.Type)
	assert.Equal(t, "Invalid Color", problem.Title)
	assert.Equal(t, "crimson", problem.Extensions["color"])
}

func TestErrorToProblem_RunError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)

	tests := []struct {
		name       string
		err        *pipeline.RunError
		wantStatus int
		wantType   string
	}{
		{"not found", pipeline.ErrRunNotFound, http.StatusNotFound, TypePipelineNotFound},
		{"validation", pipeline.NewStepValidationError("load", "no dataset path configured"), http.StatusUnprocessableEntity, TypeDataValidation},
		{"timeout", pipeline.NewTimeoutError("load", "5m0s"), http.StatusGatewayTimeout, TypeTimeout},
		{"cancelled", pipeline.NewCancellationError("merge"), http.StatusGatewayTimeout, TypeTimeout},
		{"execution", pipeline.NewExecutionError("save", fmt.Errorf("disk full"), false), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			if tt.err.StepID != "" {
				assert.Equal(t, tt.err.StepID, problem.Extensions["step_id"])
			}
		})
	}
}

func TestErrorToProblem_RunErrorWrappingFilterError(t *testing.T) {
	// A run that died on a row filter still reports the filter problem,
	// not a generic pipeline failure.
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)

	inner := &dataset.FilterError{Column: "region", Reason: "filter removed all data rows"}
	err := pipeline.NewExecutionError("filter", fmt.Errorf("row filter on region: %w", inner), false)

	problem := h.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, TypeFilter, problem.Type)
	assert.Equal(t, "region", problem.Extensions["column"])
}

func TestErrorToProblem_APIError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/datasets/q3", nil)

	tests := []struct {
		name     string
		apiErr   *APIError
		wantType string
	}{
		{"dataset not found", ErrDatasetNotFound, TypeDatasetNotFound},
		{"wave config", ErrInvalidWaveConfig, TypeWaveConfig},
		{"pipeline running", ErrPipelineRunning, TypePipelineRunning},
		{"rate limit", ErrRateLimitExceeded, TypeRateLimit},
		{"validation", ErrInvalidRequest, TypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.apiErr, r)
			assert.Equal(t, tt.apiErr.StatusCode, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.apiErr.ErrorCode, problem.Extensions["error_code"])
		})
	}
}

func TestErrorToProblem_UntypedFallbacks(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found heuristic", fmt.Errorf("dataset %q not found", "q3"), http.StatusNotFound, TypeNotFound},
		{"rate limit heuristic", fmt.Errorf("rate limit exceeded for client"), http.StatusTooManyRequests, TypeRateLimit},
		{"conflict heuristic", fmt.Errorf("conflict: run already active"), http.StatusConflict, TypeConflict},
		{"generic", fmt.Errorf("something broke"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
		})
	}
}

func TestHandleError_WritesProblemJSON(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	w := httptest.NewRecorder()

	h.HandleError(w, r, dataset.NewColumnNotFoundError("W9_mood", []string{"W1_mood"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeColumnNotFound, body["type"])
	assert.Equal(t, "W9_mood", body["column"])
	assert.Contains(t, body, "trace_id")
}

func TestHandleError_NilError(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/waves", nil)
	w := httptest.NewRecorder()

	h.HandleError(w, r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandlePanic(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/waves", nil)
	w := httptest.NewRecorder()

	h.HandlePanic(w, r, "boom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
}

func TestHandlePanic_IncludesDetailsWithStack(t *testing.T) {
	h := NewErrorHandler(slog.Default(), true)
	r := httptest.NewRequest(http.MethodGet, "/api/waves", nil)
	w := httptest.NewRecorder()

	h.HandlePanic(w, r, "boom")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "boom", body["panic"])
	assert.Contains(t, body, "stack")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	r := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	h.NotFound(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = httptest.NewRequest(http.MethodDelete, "/api/waves", nil)
	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
