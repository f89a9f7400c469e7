package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/services"
)

func newTestWaveHandler(t *testing.T) (*WaveHandler, *services.WaveService) {
	t.Helper()
	paths := newTestPaths(t)
	service := services.NewWaveService(newTestRegistry(t, paths), testLogger())
	return NewWaveHandler(service, testLogger(), newTestErrorHandler()), service
}

func TestWaveHandler_List(t *testing.T) {
	handler, _ := newTestWaveHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(3), body["count"])

	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 3)

	first, ok := data[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), first["number"])
	assert.Equal(t, "Wave1", first["name"])
	assert.Equal(t, "W1_", first["prefix"])
}

func TestWaveHandler_Add(t *testing.T) {
	handler, service := newTestWaveHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]string{
		"wave":        "4",
		"description": "spring 2024 follow-up",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), data["number"])
	assert.Equal(t, "Wave4", data["name"])
	assert.Equal(t, "W4_", data["prefix"])

	assert.Equal(t, 4, service.Count())
}

func TestWaveHandler_Add_CustomPrefix(t *testing.T) {
	handler, service := newTestWaveHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodPost, "/", map[string]string{
		"wave":   "4",
		"prefix": "Wave4_",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data, ok := decodeBody(t, rec)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Wave4_", data["prefix"])

	assert.Equal(t, 4, service.Count())
}

func TestWaveHandler_Add_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed json", body: "{not json"},
		{name: "missing wave", body: map[string]string{"description": "x"}},
		{name: "unparseable wave", body: map[string]string{"wave": "baseline"}},
		{name: "non positive wave", body: map[string]string{"wave": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newTestWaveHandler(t)

			rec := performRequest(t, handler.Routes(), http.MethodPost, "/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 3, service.Count())

			body := decodeBody(t, rec)
			assert.Equal(t, float64(http.StatusBadRequest), body["status"])
			assert.NotEmpty(t, body["title"])
		})
	}
}

func TestWaveHandler_Resolve(t *testing.T) {
	handler, _ := newTestWaveHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodGet, "/resolve?config=w1_to_w3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "w1_to_w3", data["token"])
	assert.Equal(t, "Wave1 to Wave3", data["label"])

	source, ok := data["source"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "W1_", source["prefix"])
}

func TestWaveHandler_Resolve_AllWaves(t *testing.T) {
	handler, _ := newTestWaveHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodGet, "/resolve?config=all_waves", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "w1_to_w3", data["token"])
}

func TestWaveHandler_Resolve_WithVariable(t *testing.T) {
	handler, _ := newTestWaveHandler(t)

	rec := performRequest(t, handler.Routes(), http.MethodGet,
		"/resolve?config=w1_to_w3&variable=political_leaning", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "W1_political_leaning", data["source_column"])
	assert.Equal(t, "W3_political_leaning", data["target_column"])
}

func TestWaveHandler_Resolve_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "missing config", target: "/resolve", wantStatus: http.StatusBadRequest},
		{name: "malformed token", target: "/resolve?config=wave1-wave3", wantStatus: http.StatusBadRequest},
		{name: "unregistered wave", target: "/resolve?config=w1_to_w9", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTestWaveHandler(t)

			rec := performRequest(t, handler.Routes(), http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)

			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["title"])
		})
	}
}
