package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"wavecli/internal/config"
	"wavecli/internal/infrastructure"
	"wavecli/internal/pipeline"
	"wavecli/internal/services"
	"wavecli/internal/validation"
)

func main() {
	inPath := flag.String("in", "", "raw survey dataset to clean, .csv or .xlsx (required)")
	outPath := flag.String("out", "", "output path for the processed dataset (defaults to settings/processed_data.csv)")
	step := flag.String("step", "", "run a single pipeline step instead of the whole pipeline")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	if *inPath == "" {
		slog.Error("An input dataset is required, e.g. -in data/raw_survey.csv")
		flag.Usage()
		os.Exit(1)
	}

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	cfg.Logging.FilePath = paths.GetLogPath("prepare.log")

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Starting dataset preparation",
		slog.String("input", *inPath),
		slog.String("output", *outPath),
		slog.String("step", *step),
		slog.Duration("timeout", *timeout))

	// Fail on bad paths before any pipeline state is created
	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateDatasetFile(*inPath); err != nil {
		logger.Error("Input dataset rejected", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := validator.ValidateOutputPath(*outPath); err != nil {
		logger.Error("Output path rejected", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// No hub: progress stays on the console and in the logs
	service, err := services.NewPipelineServiceWithPaths(paths, nil, nil, logger)
	if err != nil {
		logger.Error("Failed to initialize pipeline service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer service.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("Cleaning %s\n", *inPath)

	resp, err := service.Run(ctx, services.RunRequest{
		Step:        *step,
		DatasetPath: *inPath,
		OutputPath:  *outPath,
	})
	if err != nil {
		logger.Error("Pipeline run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printStepResults(service.Steps(), resp)

	if resp.Status != pipeline.RunStatusCompleted {
		logger.Error("Pipeline run did not complete",
			slog.String("run_id", resp.ID),
			slog.String("status", string(resp.Status)),
			slog.String("error", resp.Error))
		os.Exit(1)
	}

	output := *outPath
	if output == "" {
		output = paths.GetProcessedDataPath()
	}

	logger.Info("Pipeline run completed",
		slog.String("run_id", resp.ID),
		slog.Duration("duration", resp.Duration),
		slog.String("output", output))
	fmt.Printf("Processing complete: %s\n", output)
}

// printStepResults prints one line per executed step in pipeline order.
func printStepResults(order []string, resp *pipeline.Response) {
	for _, id := range order {
		state, ok := resp.Steps[id]
		if !ok {
			continue
		}

		switch state.Status {
		case pipeline.StepStatusFailed:
			fmt.Printf("  %-8s %s: %s\n", id, state.Status, state.Error)
		case pipeline.StepStatusCompleted:
			fmt.Printf("  %-8s %s: %s\n", id, state.Status, state.Message)
		default:
			fmt.Printf("  %-8s %s\n", id, state.Status)
		}
	}
}
