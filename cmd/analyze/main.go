package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"wavecli/internal/colormap"
	"wavecli/internal/config"
	"wavecli/internal/exporter"
	"wavecli/internal/infrastructure"
	"wavecli/internal/services"
	"wavecli/internal/validation"
	"wavecli/internal/waves"
)

func main() {
	datasetName := flag.String("dataset", "", "processed dataset file name under data/ (defaults to the cleaning pipeline output)")
	variablesFlag := flag.String("variables", "", "comma-separated survey variables to analyze (required)")
	waveConfig := flag.String("waves", "all_waves", "wave transition token, e.g. w1_to_w3 or all_waves")
	topN := flag.Int("top", 0, "number of top patterns to report (0 uses the configured default)")
	filterColumn := flag.String("filter-column", "", "column to filter rows on before aggregation")
	filterValues := flag.String("filter-values", "", "comma-separated values kept by the filter")
	format := flag.String("format", "all", "export format: csv, json or all")
	outDir := flag.String("out", "", "output directory for exports (defaults to exports/ relative to executable)")
	pushSheets := flag.Bool("sheets", false, "also push transition matrices to the configured Google Sheets spreadsheet")
	flag.Parse()

	variables := splitList(*variablesFlag)
	if len(variables) == 0 {
		slog.Error("At least one variable is required, e.g. -variables political_leaning")
		flag.Usage()
		os.Exit(1)
	}

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	if *outDir != "" {
		paths.ExportsDir = *outDir
	}
	if err := validation.NewFileValidator(nil).ValidateOutputDirectory(paths.ExportsDir); err != nil {
		slog.Error("Failed to prepare output directory", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	cfg.Logging.FilePath = paths.GetLogPath("analyze.log")

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Starting transition analysis",
		slog.String("dataset", *datasetName),
		slog.Any("variables", variables),
		slog.String("wave_config", *waveConfig),
		slog.String("exports_dir", paths.ExportsDir))

	waveStore := waves.NewCSVStore(paths.WaveDefinitionsCSV, logger)
	registry, err := waves.NewRegistry(waveStore, logger)
	if err != nil {
		logger.Error("Failed to initialize wave registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	colors := colormap.NewStore(paths.ColorMappingsCSV, logger)
	if err := colors.Load(); err != nil {
		logger.Error("Failed to load color mappings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	datasets := services.NewDatasetServiceWithPaths(paths, cfg.Analysis.DatasetCacheTTL, logger)
	analysis := services.NewAnalysisService(datasets, registry, colors, cfg.Analysis, nil, logger)

	ctx := context.Background()

	fmt.Printf("Analyzing %d variable(s) over %s\n", len(variables), *waveConfig)

	entries := runAnalyses(ctx, analysis, analysisOptions{
		dataset:      *datasetName,
		variables:    variables,
		waveConfig:   *waveConfig,
		topN:         *topN,
		filterColumn: *filterColumn,
		filterValues: splitList(*filterValues),
	}, logger)

	analysisExporter := exporter.NewAnalysisExporter(paths, nil)

	var sheetsExporter *exporter.SheetsExporter
	if *pushSheets {
		se, err := exporter.NewSheetsExporter(ctx, cfg.Sheets, paths, logger, nil)
		switch {
		case errors.Is(err, exporter.ErrSheetsDisabled):
			logger.Warn("Sheets export requested but disabled in configuration",
				slog.String("action", "set sheets.enabled and a spreadsheet ID"))
		case err != nil:
			logger.Error("Failed to initialize sheets exporter", slog.String("error", err.Error()))
			os.Exit(1)
		default:
			sheetsExporter = se
		}
	}

	failed := 0
	for i, entry := range entries {
		fmt.Printf("Processing variable %d of %d: %s\n", i+1, len(entries), entry.Variable)

		if entry.Error != "" {
			logger.Error("Analysis failed",
				slog.String("variable", entry.Variable),
				slog.String("error", entry.Error))
			failed++
			continue
		}

		result := entry.Result
		baseName := fmt.Sprintf("%s_%s", result.Variable, result.WaveTransition)
		exportResult := exporter.Result{
			Variable:       result.Variable,
			WaveTransition: result.WaveTransition,
			Dataset:        result.Dataset,
			Records:        result.Records,
			Statistics:     result.Statistics,
			Matrix:         result.Matrix,
			Patterns:       &result.Patterns,
		}

		written, err := writeExports(ctx, analysisExporter, exportResult, baseName, *format)
		if err != nil {
			logger.Error("Export failed",
				slog.String("variable", entry.Variable),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		for kind, path := range written {
			logger.Info("Export written",
				slog.String("variable", entry.Variable),
				slog.String("kind", kind),
				slog.String("path", path))
		}

		if sheetsExporter != nil && result.Matrix != nil {
			sheetName := fmt.Sprintf("%s %s", result.Variable, result.WaveTransition)
			if err := sheetsExporter.ExportMatrix(ctx, result.Matrix, sheetName); err != nil {
				logger.Warn("Sheets export failed",
					slog.String("variable", entry.Variable),
					slog.String("error", err.Error()))
			}
		}
	}

	fmt.Printf("Analysis complete: %d variable(s), %d failed\n", len(entries), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// analysisOptions collects the per-run analysis parameters.
type analysisOptions struct {
	dataset      string
	variables    []string
	waveConfig   string
	topN         int
	filterColumn string
	filterValues []string
}

// runAnalyses produces one entry per variable. Filtered runs go through
// the single-analysis path because the batch request carries no filter;
// unfiltered runs use the batch fan-out.
func runAnalyses(ctx context.Context, analysis *services.AnalysisService, opts analysisOptions, logger *slog.Logger) []services.BatchEntry {
	if opts.filterColumn != "" {
		if len(opts.filterValues) == 0 {
			logger.Error("filter-column requires filter-values")
			os.Exit(1)
		}

		entries := make([]services.BatchEntry, 0, len(opts.variables))
		for _, variable := range opts.variables {
			entry := services.BatchEntry{Variable: variable}
			result, err := analysis.Analyze(ctx, services.AnalysisRequest{
				Dataset:      opts.dataset,
				Variable:     variable,
				WaveConfig:   opts.waveConfig,
				FilterColumn: opts.filterColumn,
				FilterValues: opts.filterValues,
				TopN:         opts.topN,
			})
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Result = result
			}
			entries = append(entries, entry)
		}
		return entries
	}

	entries, err := analysis.AnalyzeBatch(ctx, services.BatchRequest{
		Dataset:    opts.dataset,
		Variables:  opts.variables,
		WaveConfig: opts.waveConfig,
		TopN:       opts.topN,
	})
	if err != nil {
		logger.Error("Batch analysis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	return entries
}

// writeExports writes the requested export formats and returns the
// written paths keyed by export kind.
func writeExports(ctx context.Context, e *exporter.AnalysisExporter, result exporter.Result, baseName, format string) (map[string]string, error) {
	switch format {
	case "all":
		return e.ExportAll(ctx, result, baseName)
	case "json":
		path, err := e.ExportJSON(ctx, result, baseName)
		if err != nil {
			return nil, err
		}
		return map[string]string{"analysis": path}, nil
	case "csv":
		written := make(map[string]string)
		path, err := e.ExportRecords(ctx, result.Records, baseName)
		if err != nil {
			return written, err
		}
		written["records"] = path

		path, err = e.ExportStatistics(ctx, result.Statistics, baseName)
		if err != nil {
			return written, err
		}
		written["statistics"] = path

		if result.Matrix != nil {
			path, err = e.ExportMatrix(ctx, result.Matrix, baseName)
			if err != nil {
				return written, err
			}
			written["matrix"] = path
		}
		return written, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want csv, json or all)", format)
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
