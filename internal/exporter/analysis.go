package exporter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"wavecli/internal/config"
	apperrors "wavecli/internal/errors"
	"wavecli/internal/infrastructure"
	"wavecli/internal/transitions"
)

// Result bundles the outputs of one transition analysis for export.
type Result struct {
	Variable       string                      `json:"variable,omitempty"`
	WaveTransition string                      `json:"wave_transition,omitempty"`
	Dataset        string                      `json:"dataset,omitempty"`
	Records        []transitions.Record        `json:"records"`
	Statistics     transitions.Statistics      `json:"statistics"`
	Matrix         *transitions.Matrix         `json:"matrix,omitempty"`
	Patterns       *transitions.PatternSummary `json:"patterns,omitempty"`
	GeneratedAt    time.Time                   `json:"generated_at"`
}

// AnalysisExporter writes analysis results to the exports directory.
// File names derive from a caller-supplied base name, sanitized for the
// file system, with a fixed suffix per export kind.
type AnalysisExporter struct {
	csvWriter *CSVWriter
	metrics   *infrastructure.BusinessMetrics
}

// NewAnalysisExporter creates a new analysis exporter. metrics may be nil
// when export metrics are not collected.
func NewAnalysisExporter(paths *config.Paths, metrics *infrastructure.BusinessMetrics) *AnalysisExporter {
	return &AnalysisExporter{
		csvWriter: NewCSVWriter(paths),
		metrics:   metrics,
	}
}

// ExportRecords writes the transition records to <base>_transitions.csv
// in aggregation order and returns the written file path.
func (e *AnalysisExporter) ExportRecords(ctx context.Context, records []transitions.Record, baseName string) (string, error) {
	start := time.Now()

	filePath := sanitizeFilename(baseName) + "_transitions.csv"

	csvRecords := make([][]string, 0, len(records))
	for _, record := range records {
		csvRecords = append(csvRecords, []string{
			record.Source,
			record.Target,
			formatInt(record.Count),
			formatFloat(record.Percentage),
		})
	}

	headers := []string{"Source", "Target", "Count", "Percentage"}
	err := e.csvWriter.WriteSimpleCSV(filePath, headers, csvRecords)
	infrastructure.RecordExportMetrics(ctx, e.metrics, "csv", time.Since(start), err)
	if err != nil {
		return "", apperrors.NewExportError("write transition records", err)
	}

	return e.csvWriter.resolvePath(filePath), nil
}

// ExportStatistics writes the run statistics to <base>_statistics.csv as
// a single summary row and returns the written file path.
func (e *AnalysisExporter) ExportStatistics(ctx context.Context, stats transitions.Statistics, baseName string) (string, error) {
	start := time.Now()

	filePath := sanitizeFilename(baseName) + "_statistics.csv"

	headers := []string{
		"Variable", "WaveTransition", "SourceColumn", "TargetColumn",
		"TotalTransitions", "UniquePatterns", "StabilityRate",
	}
	row := []string{
		stats.VariableAnalyzed,
		stats.WaveTransition,
		stats.SourceColumn,
		stats.TargetColumn,
		formatInt(stats.TotalTransitions),
		formatInt(stats.UniquePatterns),
		formatFloat(stats.StabilityRate),
	}

	err := e.csvWriter.WriteSimpleCSV(filePath, headers, [][]string{row})
	infrastructure.RecordExportMetrics(ctx, e.metrics, "csv", time.Since(start), err)
	if err != nil {
		return "", apperrors.NewExportError("write statistics", err)
	}

	return e.csvWriter.resolvePath(filePath), nil
}

// ExportMatrix writes the crosstab counts to <base>_matrix.csv and
// returns the written file path. The first column holds the source
// categories, the remaining columns one target category each.
func (e *AnalysisExporter) ExportMatrix(ctx context.Context, matrix *transitions.Matrix, baseName string) (string, error) {
	if matrix == nil {
		return "", apperrors.NewAppValidationError("no matrix to export")
	}

	start := time.Now()

	filePath := sanitizeFilename(baseName) + "_matrix.csv"

	headers := make([]string, 0, len(matrix.TargetCategories)+1)
	headers = append(headers, "Source")
	headers = append(headers, matrix.TargetCategories...)

	csvRecords := make([][]string, 0, len(matrix.SourceCategories))
	for i, source := range matrix.SourceCategories {
		row := make([]string, 0, len(matrix.TargetCategories)+1)
		row = append(row, source)
		for j := range matrix.TargetCategories {
			row = append(row, formatInt(matrix.Counts[i][j]))
		}
		csvRecords = append(csvRecords, row)
	}

	err := e.csvWriter.WriteSimpleCSV(filePath, headers, csvRecords)
	infrastructure.RecordExportMetrics(ctx, e.metrics, "csv", time.Since(start), err)
	if err != nil {
		return "", apperrors.NewExportError("write matrix", err)
	}

	return e.csvWriter.resolvePath(filePath), nil
}

// ExportJSON writes the whole result to <base>_analysis.json and returns
// the written file path. A zero GeneratedAt is stamped with the current
// time.
func (e *AnalysisExporter) ExportJSON(ctx context.Context, result Result, baseName string) (string, error) {
	start := time.Now()

	if result.GeneratedAt.IsZero() {
		result.GeneratedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		infrastructure.RecordExportMetrics(ctx, e.metrics, "json", time.Since(start), err)
		return "", apperrors.NewExportError("marshal analysis result", err)
	}

	fullPath := e.csvWriter.resolvePath(sanitizeFilename(baseName) + "_analysis.json")
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		infrastructure.RecordExportMetrics(ctx, e.metrics, "json", time.Since(start), err)
		return "", apperrors.NewStorageError("create exports directory", err)
	}

	err = os.WriteFile(fullPath, data, 0644)
	infrastructure.RecordExportMetrics(ctx, e.metrics, "json", time.Since(start), err)
	if err != nil {
		return "", apperrors.NewExportError("write analysis result", err)
	}

	return fullPath, nil
}

// ExportAll writes every export format for a result and returns the
// written file paths keyed by export kind (records, statistics, matrix,
// analysis). The matrix export is skipped when the result has no matrix.
// On error the map holds the files written before the failure.
func (e *AnalysisExporter) ExportAll(ctx context.Context, result Result, baseName string) (map[string]string, error) {
	exported := make(map[string]string)

	path, err := e.ExportRecords(ctx, result.Records, baseName)
	if err != nil {
		return exported, err
	}
	exported["records"] = path

	path, err = e.ExportStatistics(ctx, result.Statistics, baseName)
	if err != nil {
		return exported, err
	}
	exported["statistics"] = path

	if result.Matrix != nil {
		path, err = e.ExportMatrix(ctx, result.Matrix, baseName)
		if err != nil {
			return exported, err
		}
		exported["matrix"] = path
	}

	path, err = e.ExportJSON(ctx, result, baseName)
	if err != nil {
		return exported, err
	}
	exported["analysis"] = path

	return exported, nil
}
