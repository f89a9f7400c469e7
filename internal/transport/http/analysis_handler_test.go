package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/services"
)

func newTestAnalysisHandler(t *testing.T) *AnalysisHandler {
	t.Helper()
	service, _ := newTestAnalysisService(t)
	return NewAnalysisHandler(service, testLogger(), newTestErrorHandler())
}

// failingAnalysisService forces the unexpected-error path.
type failingAnalysisService struct {
	err error
}

func (f *failingAnalysisService) Analyze(ctx context.Context, req services.AnalysisRequest) (*services.AnalysisResult, error) {
	return nil, f.err
}

func (f *failingAnalysisService) AnalyzeBatch(ctx context.Context, req services.BatchRequest) ([]services.BatchEntry, error) {
	return nil, f.err
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"dataset":     "survey.csv",
		"variable":    "political_leaning",
		"wave_config": "w1_to_w3",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "political_leaning", data["variable"])
	assert.Equal(t, "w1_to_w3", data["wave_transition"])
	assert.Equal(t, "Wave1 to Wave3", data["wave_label"])
	assert.Equal(t, "survey.csv", data["dataset"])

	records, ok := data["records"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, records)

	first, ok := records[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Left", first["source"])
	assert.Equal(t, "Left", first["target"])
	assert.Equal(t, float64(2), first["count"])

	stats, ok := data["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), stats["total_transitions"])

	matrix, ok := data["matrix"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, matrix["counts"])

	colors, ok := data["node_colors"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"#ff0000", "#0000ff"}, colors["source"])
}

func TestAnalysisHandler_Analyze_ValidationError(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"dataset": "survey.csv",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.NotEmpty(t, body["title"])
}

func TestAnalysisHandler_Analyze_MalformedJSON(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisHandler_Analyze_UnknownColumn(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"dataset":     "survey.csv",
		"variable":    "household_income",
		"wave_config": "w1_to_w3",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Column Not Found", body["title"])
	assert.Contains(t, body["column"], "household_income")
}

func TestAnalysisHandler_Analyze_UnknownDataset(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"dataset":     "missing.csv",
		"variable":    "political_leaning",
		"wave_config": "w1_to_w3",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func TestAnalysisHandler_Analyze_BadWaveConfig(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"dataset":     "survey.csv",
		"variable":    "political_leaning",
		"wave_config": "w1_to_w9",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid Wave Configuration", body["title"])
}

func TestAnalysisHandler_Analyze_InternalError(t *testing.T) {
	service := &failingAnalysisService{err: errors.New("aggregation exploded")}
	handler := NewAnalysisHandler(service, testLogger(), newTestErrorHandler())

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"dataset":     "survey.csv",
		"variable":    "political_leaning",
		"wave_config": "w1_to_w3",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Internal Server Error", body["title"])
}

func TestAnalysisHandler_AnalyzeBatch(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/batch", map[string]interface{}{
		"dataset":     "survey.csv",
		"variables":   []string{"political_leaning", "household_income"},
		"wave_config": "w1_to_w3",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(1), body["failed"])

	entries, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 2)

	first, ok := entries[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "political_leaning", first["variable"])
	assert.NotNil(t, first["result"])

	second, ok := entries[1].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, second["error"], "household_income")
}

func TestAnalysisHandler_AnalyzeBatch_Validation(t *testing.T) {
	handler := newTestAnalysisHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/batch", map[string]interface{}{
		"dataset":     "survey.csv",
		"variables":   []string{},
		"wave_config": "w1_to_w3",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisHandler_Analyze_DefaultDataset(t *testing.T) {
	service, paths := newTestAnalysisService(t)
	require.NoError(t, os.WriteFile(paths.ProcessedDataCSV, []byte(surveyCSV), 0644))
	handler := NewAnalysisHandler(service, testLogger(), newTestErrorHandler())

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]interface{}{
		"variable":    "political_leaning",
		"wave_config": "w1_to_w3",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "processed_data.csv", data["dataset"])
}
