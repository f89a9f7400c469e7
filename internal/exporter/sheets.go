package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"wavecli/internal/config"
	apperrors "wavecli/internal/errors"
	"wavecli/internal/infrastructure"
	"wavecli/internal/transitions"
)

// ErrSheetsDisabled is returned by NewSheetsExporter when sheets export
// is switched off in the configuration. Callers treat it as "not
// configured" rather than a failure.
var ErrSheetsDisabled = errors.New("sheets export is disabled")

// SheetsExporter pushes transition matrices to a Google Sheets
// spreadsheet.
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
	metrics       *infrastructure.BusinessMetrics
}

// NewSheetsExporter creates a sheets exporter from the sheets
// configuration. Credentials are read from the configured service
// account file, resolved against the executable directory when the path
// is relative. Returns ErrSheetsDisabled when sheets export is not
// enabled.
func NewSheetsExporter(ctx context.Context, cfg config.SheetsConfig, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) (*SheetsExporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled {
		return nil, ErrSheetsDisabled
	}
	if cfg.SpreadsheetID == "" {
		return nil, apperrors.NewConfigError("sheets export enabled but no spreadsheet ID configured", nil)
	}

	credentialsPath := cfg.CredentialsFile
	if !filepath.IsAbs(credentialsPath) && paths != nil {
		credentialsPath = paths.GetRelativePath(credentialsPath)
	}

	credentialsJSON, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("read sheets credentials %s", credentialsPath), err)
	}
	if len(credentialsJSON) == 0 {
		return nil, apperrors.NewConfigError(fmt.Sprintf("sheets credentials file %s is empty", credentialsPath), nil)
	}

	// Resolve credentials up front so a malformed service-account file
	// fails here instead of on the first API call
	credentials, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid sheets credentials %s", credentialsPath), err)
	}

	service, err := sheets.NewService(ctx, option.WithTokenSource(credentials.TokenSource))
	if err != nil {
		return nil, apperrors.NewNetworkError("create sheets service", err)
	}

	logger.Info("Google Sheets exporter initialized",
		slog.String("spreadsheet_id", cfg.SpreadsheetID))

	return &SheetsExporter{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// TestConnection verifies the configured spreadsheet is reachable with
// the loaded credentials.
func (e *SheetsExporter) TestConnection(ctx context.Context) error {
	_, err := e.service.Spreadsheets.Get(e.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return apperrors.NewNetworkError(fmt.Sprintf("access spreadsheet %s", e.spreadsheetID), err)
	}
	return nil
}

// ExportMatrix writes a transition matrix to the named sheet starting at
// A1, overwriting the covered range. The sheet must already exist in the
// spreadsheet. An empty sheet name defaults to "Transitions".
func (e *SheetsExporter) ExportMatrix(ctx context.Context, matrix *transitions.Matrix, sheetName string) error {
	start := time.Now()
	err := e.exportMatrix(ctx, matrix, sheetName)
	infrastructure.RecordExportMetrics(ctx, e.metrics, "sheets", time.Since(start), err)
	return err
}

func (e *SheetsExporter) exportMatrix(ctx context.Context, matrix *transitions.Matrix, sheetName string) error {
	if matrix == nil {
		return apperrors.NewAppValidationError("no matrix to export")
	}
	if sheetName == "" {
		sheetName = "Transitions"
	}

	values := matrixValues(matrix)
	rangeStr := fmt.Sprintf("%s!A1", sheetName)
	valueRange := &sheets.ValueRange{Values: values}

	_, err := e.service.Spreadsheets.Values.Update(
		e.spreadsheetID,
		rangeStr,
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return apperrors.NewNetworkError(fmt.Sprintf("update sheet %s", sheetName), err)
	}

	e.logger.Info("Transition matrix exported to Google Sheets",
		slog.String("spreadsheet_id", e.spreadsheetID),
		slog.String("sheet", sheetName),
		slog.Int("rows", len(values)))

	return nil
}

// matrixValues converts a matrix into the row-major cell values the
// Sheets API expects. The first row holds the target categories, the
// first column of every following row the source category.
func matrixValues(matrix *transitions.Matrix) [][]interface{} {
	values := make([][]interface{}, 0, len(matrix.SourceCategories)+1)

	header := make([]interface{}, 0, len(matrix.TargetCategories)+1)
	header = append(header, "Source")
	for _, target := range matrix.TargetCategories {
		header = append(header, target)
	}
	values = append(values, header)

	for i, source := range matrix.SourceCategories {
		row := make([]interface{}, 0, len(matrix.TargetCategories)+1)
		row = append(row, source)
		for j := range matrix.TargetCategories {
			row = append(row, matrix.Counts[i][j])
		}
		values = append(values, row)
	}

	return values
}
