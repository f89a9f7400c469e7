package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/config"
)

// initFileLogger initializes the global logger writing to a temp file
// and returns the file path. State is reset around the test.
func initFileLogger(t *testing.T, level string) (*slog.Logger, string) {
	t.Helper()
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	logFile := filepath.Join(t.TempDir(), "wavecli.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    level,
		Format:   "json",
		Output:   "both",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	return logger, logFile
}

// lastLogEntry closes the log file and decodes its final line.
func lastLogEntry(t *testing.T, logFile string) map[string]interface{} {
	t.Helper()
	CloseLogFile()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger_WritesJSONFile(t *testing.T) {
	logger, logFile := initFileLogger(t, "info")

	_, err := os.Stat(logFile)
	require.NoError(t, err, "log file should be created eagerly")

	logger.Info("registry loaded", "wave_count", 3)

	entry := lastLogEntry(t, logFile)
	assert.Equal(t, "registry loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["wave_count"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestTraceIDInjection(t *testing.T) {
	_, logFile := initFileLogger(t, "debug")

	ctx := WithTraceID(context.Background(), "trace-abc-123")
	LoggerWithContext(ctx).InfoContext(ctx, "analysis started")

	entry := lastLogEntry(t, logFile)
	assert.Equal(t, "trace-abc-123", entry["trace_id"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level string
		want  string
		emit  func(*slog.Logger)
	}{
		{"debug", "DEBUG", func(l *slog.Logger) { l.Debug("resolving token") }},
		{"info", "INFO", func(l *slog.Logger) { l.Info("dataset cached") }},
		{"warn", "WARN", func(l *slog.Logger) { l.Warn("column missing") }},
		{"error", "ERROR", func(l *slog.Logger) { l.Error("export failed") }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, logFile := initFileLogger(t, tt.level)
			tt.emit(logger)

			entry := lastLogEntry(t, logFile)
			assert.Equal(t, tt.want, entry["level"])
		})
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	_, _ = initFileLogger(t, "info")

	ctx := ContextWithTraceID(context.Background())
	traceID := GetTraceID(ctx)
	require.NotEmpty(t, traceID)

	// An existing trace ID survives EnsureTraceID
	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)))

	// A bare context gets one
	assert.NotEmpty(t, GetTraceID(EnsureTraceID(context.Background())))
}

func TestLoggerAttrHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	decode := func() map[string]interface{} {
		t.Helper()
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		return entry
	}

	WithComponent(logger, "aggregator").Info("grouping transitions")
	assert.Equal(t, "aggregator", decode()["component"])

	buf.Reset()
	WithError(logger, os.ErrNotExist).Info("dataset read failed")
	assert.Contains(t, decode()["error"], "file does not exist")

	buf.Reset()
	WithFields(logger, map[string]interface{}{
		"variable": "political_leaning",
		"token":    "w1_to_w3",
	}).Info("analysis requested")
	entry := decode()
	assert.Equal(t, "political_leaning", entry["variable"])
	assert.Equal(t, "w1_to_w3", entry["token"])
}
