package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wavecli/internal/colormap"
	"wavecli/internal/config"
	apierrors "wavecli/internal/errors"
	"wavecli/internal/middleware"
	"wavecli/internal/services"
	"wavecli/internal/waves"
)

// surveyCSV has five complete political_leaning cases between wave 1 and
// wave 3 (row 6 is missing its source) and a wave 1 region column.
const surveyCSV = "ID,W1_political_leaning,W3_political_leaning,W1_region\n" +
	"1,Left,Left,North\n" +
	"2,Left,Right,North\n" +
	"3,Right,Right,South\n" +
	"4,Left,Left,South\n" +
	"5,Right,Left,North\n" +
	"6,,Right,North\n"

const colorsCSV = "variable_name,value_name,color_hex,description\n" +
	"political_leaning,Left,#ff0000,\n" +
	"political_leaning,Right,#0000ff,\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestErrorHandler() *apierrors.ErrorHandler {
	return apierrors.NewErrorHandler(testLogger(), false)
}

// newTestPaths lays out a temp data/settings tree the way the resolved
// application paths do.
func newTestPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	paths := &config.Paths{
		DataDir:             filepath.Join(base, "data"),
		SettingsDir:         filepath.Join(base, "settings"),
		CleaningSettingsDir: filepath.Join(base, "settings", "cleaning"),
		ProcessedDataCSV:    filepath.Join(base, "settings", "processed_data.csv"),
	}
	require.NoError(t, os.MkdirAll(paths.DataDir, 0755))
	require.NoError(t, os.MkdirAll(paths.CleaningSettingsDir, 0755))
	return paths
}

func newTestRegistry(t *testing.T, paths *config.Paths) *waves.Registry {
	t.Helper()
	store := waves.NewCSVStore(filepath.Join(paths.SettingsDir, "wave_definitions.csv"), nil)
	registry, err := waves.NewRegistry(store, nil)
	require.NoError(t, err)
	return registry
}

func newTestColorStore(t *testing.T, paths *config.Paths) *colormap.Store {
	t.Helper()
	colorsPath := filepath.Join(paths.SettingsDir, "value_colors.csv")
	require.NoError(t, os.WriteFile(colorsPath, []byte(colorsCSV), 0644))
	store := colormap.NewStore(colorsPath, nil)
	require.NoError(t, store.Load())
	return store
}

func newTestAnalysisService(t *testing.T) (*services.AnalysisService, *config.Paths) {
	t.Helper()
	paths := newTestPaths(t)
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "survey.csv"), []byte(surveyCSV), 0644))

	registry := newTestRegistry(t, paths)
	colors := newTestColorStore(t, paths)
	datasets := services.NewDatasetServiceWithPaths(paths, time.Minute, nil)
	cfg := config.AnalysisConfig{
		MinCategories: 2,
		MaxCategories: 50,
		TopPatterns:   10,
		Timeout:       time.Minute,
	}
	return services.NewAnalysisService(datasets, registry, colors, cfg, nil, nil), paths
}

// performRequest routes a request through the handler and records the
// response. A nil body sends an empty request, any other value is JSON
// encoded.
func performRequest(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewBuffer(payload)
		}
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// nopHub satisfies pipeline.Hub for tests that do not inspect broadcasts.
type nopHub struct{}

func (nopHub) BroadcastUpdate(eventType, subtype, action string, payload interface{}) {}

// middlewareRequestID wraps the websocket handler with the request ID
// middleware so a trace ID is present, matching the production chain.
func middlewareRequestID(h *WebSocketHandler) http.Handler {
	return middleware.RequestID(http.HandlerFunc(h.Handle))
}
