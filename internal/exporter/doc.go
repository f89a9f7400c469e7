// Package exporter writes wave analysis results to files and, optionally,
// to Google Sheets.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing functionality with support for headers, streaming,
// and UTF-8 BOM for Excel compatibility.
//
// AnalysisExporter: Writes the outputs of a transition analysis as files in
// the exports directory: transition records and statistics as CSV, the
// crosstab matrix as CSV, and the whole result as a single JSON document.
//
// SheetsExporter: Pushes a transition matrix to a Google Sheets spreadsheet.
// Sheets export is off by default and only constructed when enabled in the
// configuration.
//
// Example usage:
//
//	// Create an analysis exporter
//	analysisExporter := exporter.NewAnalysisExporter(paths, metrics)
//
//	// Export every format for one analysis
//	result := exporter.Result{Records: records, Statistics: stats, Matrix: matrix}
//	files, err := analysisExporter.ExportAll(ctx, result, "w1_to_w3_political_leaning")
//
//	// Optionally push the matrix to Google Sheets
//	sheetsExporter, err := exporter.NewSheetsExporter(ctx, cfg.Sheets, paths, logger, metrics)
//	if err == nil {
//		err = sheetsExporter.ExportMatrix(ctx, matrix, "Transitions")
//	}
package exporter
