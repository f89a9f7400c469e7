package http

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/services"
)

func TestDatasetHandler_List(t *testing.T) {
	paths := newTestPaths(t)
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "survey_b.csv"), []byte(surveyCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "survey_a.csv"), []byte(surveyCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "notes.txt"), []byte("skip"), 0644))

	service := services.NewDatasetServiceWithPaths(paths, time.Minute, testLogger())
	handler := NewDatasetHandler(service, testLogger(), newTestErrorHandler())

	rec := performRequest(t, handler.Routes(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "processed_data.csv", body["default"])

	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 2)

	first, ok := data[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "survey_a.csv", first["name"])
	assert.NotEmpty(t, first["path"])
	assert.NotZero(t, first["size_bytes"])
}

func TestDatasetHandler_List_Empty(t *testing.T) {
	paths := newTestPaths(t)
	service := services.NewDatasetServiceWithPaths(paths, time.Minute, testLogger())
	handler := NewDatasetHandler(service, testLogger(), newTestErrorHandler())

	rec := performRequest(t, handler.Routes(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["count"])
}
