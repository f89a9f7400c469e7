package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/config"
	"wavecli/internal/transitions"
)

func newTestExporter(t *testing.T) (*AnalysisExporter, string) {
	t.Helper()

	tempDir := t.TempDir()
	exportsDir := filepath.Join(tempDir, "exports")
	exporter := NewAnalysisExporter(&config.Paths{
		ExportsDir: exportsDir,
		CacheDir:   filepath.Join(tempDir, "cache"),
	}, nil)

	return exporter, exportsDir
}

func sampleRecords() []transitions.Record {
	return []transitions.Record{
		{Source: "Left", Target: "Left", Count: 120, Percentage: 60},
		{Source: "Left", Target: "Right", Count: 50, Percentage: 25},
		{Source: "Right", Target: "Right", Count: 30, Percentage: 15},
	}
}

func sampleStatistics() transitions.Statistics {
	return transitions.Statistics{
		TotalTransitions: 200,
		UniquePatterns:   3,
		StabilityRate:    75,
		VariableAnalyzed: "political_leaning",
		WaveTransition:   "W1_to_W3",
		SourceColumn:     "W1_political_leaning",
		TargetColumn:     "W3_political_leaning",
	}
}

// readCSVLines reads a CSV export back, dropping the BOM.
func readCSVLines(t *testing.T, path string) []string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))

	return strings.Split(strings.TrimSpace(string(content[3:])), "\n")
}

func TestAnalysisExporter_ExportRecords(t *testing.T) {
	exporter, exportsDir := newTestExporter(t)

	path, err := exporter.ExportRecords(context.Background(), sampleRecords(), "w1_to_w3_political_leaning")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportsDir, "w1_to_w3_political_leaning_transitions.csv"), path)

	lines := readCSVLines(t, path)
	require.Len(t, lines, 4)
	assert.Equal(t, "Source,Target,Count,Percentage", lines[0])
	assert.Equal(t, "Left,Left,120,60.00", lines[1])
	assert.Equal(t, "Left,Right,50,25.00", lines[2])
	assert.Equal(t, "Right,Right,30,15.00", lines[3])
}

func TestAnalysisExporter_ExportRecords_Empty(t *testing.T) {
	exporter, _ := newTestExporter(t)

	path, err := exporter.ExportRecords(context.Background(), nil, "empty")
	require.NoError(t, err)

	lines := readCSVLines(t, path)
	require.Len(t, lines, 1) // header only
	assert.Equal(t, "Source,Target,Count,Percentage", lines[0])
}

func TestAnalysisExporter_ExportStatistics(t *testing.T) {
	exporter, exportsDir := newTestExporter(t)

	path, err := exporter.ExportStatistics(context.Background(), sampleStatistics(), "w1_to_w3_political_leaning")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportsDir, "w1_to_w3_political_leaning_statistics.csv"), path)

	lines := readCSVLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "Variable,WaveTransition,SourceColumn,TargetColumn,TotalTransitions,UniquePatterns,StabilityRate", lines[0])
	assert.Equal(t, "political_leaning,W1_to_W3,W1_political_leaning,W3_political_leaning,200,3,75.00", lines[1])
}

func TestAnalysisExporter_ExportMatrix(t *testing.T) {
	exporter, exportsDir := newTestExporter(t)

	matrix, err := transitions.BuildMatrix(sampleRecords())
	require.NoError(t, err)

	path, err := exporter.ExportMatrix(context.Background(), matrix, "w1_to_w3_political_leaning")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportsDir, "w1_to_w3_political_leaning_matrix.csv"), path)

	lines := readCSVLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "Source,Left,Right", lines[0])
	assert.Equal(t, "Left,120,50", lines[1])
	assert.Equal(t, "Right,0,30", lines[2])
}

func TestAnalysisExporter_ExportMatrix_Nil(t *testing.T) {
	exporter, _ := newTestExporter(t)

	_, err := exporter.ExportMatrix(context.Background(), nil, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matrix")
}

func TestAnalysisExporter_ExportJSON(t *testing.T) {
	exporter, exportsDir := newTestExporter(t)

	matrix, err := transitions.BuildMatrix(sampleRecords())
	require.NoError(t, err)
	patterns := transitions.AnalyzePatterns(sampleRecords(), 2)

	result := Result{
		Variable:       "political_leaning",
		WaveTransition: "W1_to_W3",
		Dataset:        "processed_data.csv",
		Records:        sampleRecords(),
		Statistics:     sampleStatistics(),
		Matrix:         matrix,
		Patterns:       &patterns,
	}

	path, err := exporter.ExportJSON(context.Background(), result, "w1_to_w3_political_leaning")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportsDir, "w1_to_w3_political_leaning_analysis.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "political_leaning", decoded.Variable)
	assert.Equal(t, "W1_to_W3", decoded.WaveTransition)
	assert.Len(t, decoded.Records, 3)
	assert.Equal(t, 200, decoded.Statistics.TotalTransitions)
	require.NotNil(t, decoded.Matrix)
	assert.Equal(t, []string{"Left", "Right"}, decoded.Matrix.SourceCategories)
	require.NotNil(t, decoded.Patterns)
	assert.Len(t, decoded.Patterns.Top, 2)
	assert.False(t, decoded.GeneratedAt.IsZero())
}

func TestAnalysisExporter_ExportAll(t *testing.T) {
	exporter, _ := newTestExporter(t)

	matrix, err := transitions.BuildMatrix(sampleRecords())
	require.NoError(t, err)

	result := Result{
		Records:    sampleRecords(),
		Statistics: sampleStatistics(),
		Matrix:     matrix,
	}

	exported, err := exporter.ExportAll(context.Background(), result, "full_run")
	require.NoError(t, err)
	require.Len(t, exported, 4)

	for _, kind := range []string{"records", "statistics", "matrix", "analysis"} {
		path, ok := exported[kind]
		require.True(t, ok, "missing export %s", kind)

		_, err := os.Stat(path)
		assert.NoError(t, err, "export %s not written", kind)
	}
}

func TestAnalysisExporter_ExportAll_NoMatrix(t *testing.T) {
	exporter, _ := newTestExporter(t)

	result := Result{
		Records:    sampleRecords(),
		Statistics: sampleStatistics(),
	}

	exported, err := exporter.ExportAll(context.Background(), result, "no_matrix")
	require.NoError(t, err)

	assert.NotContains(t, exported, "matrix")
	assert.Contains(t, exported, "records")
	assert.Contains(t, exported, "statistics")
	assert.Contains(t, exported, "analysis")
}

func TestAnalysisExporter_SanitizesBaseName(t *testing.T) {
	exporter, _ := newTestExporter(t)

	path, err := exporter.ExportRecords(context.Background(), sampleRecords(), "bad/name?")
	require.NoError(t, err)
	assert.Equal(t, "bad_name__transitions.csv", filepath.Base(path))
}
