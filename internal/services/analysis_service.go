package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"wavecli/internal/colormap"
	"wavecli/internal/config"
	"wavecli/internal/dataset"
	"wavecli/internal/infrastructure"
	"wavecli/internal/transitions"
	"wavecli/internal/waves"
)

// batchConcurrency bounds how many variables a batch request analyzes at
// once.
const batchConcurrency = 4

// AnalysisService runs the full transition analysis: load the dataset,
// apply the optional row filter, resolve the wave pair, aggregate the
// column pair, and derive the crosstab matrix, pattern summary, and node
// colors.
type AnalysisService struct {
	datasets   *DatasetService
	resolver   *waves.Resolver
	colors     *colormap.Store
	aggregator *transitions.Aggregator
	validate   *validator.Validate
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger
	timeout    time.Duration
	topN       int
}

// NewAnalysisService wires the analysis flow over its collaborators. The
// colormap store and metrics may be nil; results then omit node colors
// and no measurements are recorded.
func NewAnalysisService(datasets *DatasetService, registry *waves.Registry, colors *colormap.Store, cfg config.AnalysisConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}

	topN := cfg.TopPatterns
	if topN <= 0 {
		topN = transitions.DefaultConfig().TopN
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	aggregator := transitions.NewAggregator(logger, transitions.Config{
		MinCategories: cfg.MinCategories,
		MaxCategories: cfg.MaxCategories,
		TopN:          topN,
	})

	return &AnalysisService{
		datasets:   datasets,
		resolver:   waves.NewResolver(registry),
		colors:     colors,
		aggregator: aggregator,
		validate:   newRequestValidator(),
		metrics:    metrics,
		logger:     logger,
		timeout:    timeout,
		topN:       topN,
	}
}

// AnalysisRequest describes one transition analysis.
type AnalysisRequest struct {
	// Dataset selects the processed dataset by file name. Empty selects
	// the cleaning pipeline's output.
	Dataset string `json:"dataset,omitempty" validate:"omitempty,filename"`
	// Variable is the survey variable measured at both waves.
	Variable string `json:"variable" validate:"required,max=100"`
	// WaveConfig is the transition token, "w1_to_w3" or "all_waves".
	WaveConfig string `json:"wave_config" validate:"required,wavetoken"`
	// FilterColumn and FilterValues restrict rows before aggregation.
	// Either both are set or neither is.
	FilterColumn string   `json:"filter_column,omitempty" validate:"required_with=FilterValues,omitempty,max=100"`
	FilterValues []string `json:"filter_values,omitempty" validate:"required_with=FilterColumn,omitempty,min=1,dive,required,max=100"`
	// TopN overrides the configured top-pattern count.
	TopN int `json:"top_n,omitempty" validate:"omitempty,min=1,max=100"`
}

// NodeColors carries display colors for the matrix axes, aligned index
// for index with the source and target categories.
type NodeColors struct {
	Source []string `json:"source"`
	Target []string `json:"target"`
}

// AnalysisResult is the complete outcome of one analysis run.
type AnalysisResult struct {
	Variable       string                     `json:"variable"`
	WaveTransition string                     `json:"wave_transition"`
	WaveLabel      string                     `json:"wave_label"`
	Dataset        string                     `json:"dataset"`
	SourceColumn   string                     `json:"source_column"`
	TargetColumn   string                     `json:"target_column"`
	Records        []transitions.Record       `json:"records"`
	Statistics     transitions.Statistics     `json:"statistics"`
	Matrix         *transitions.Matrix        `json:"matrix"`
	Patterns       transitions.PatternSummary `json:"patterns"`
	NodeColors     *NodeColors                `json:"node_colors,omitempty"`
	Filter         *dataset.FilterStats       `json:"filter,omitempty"`
}

// Analyze runs one transition analysis under the configured timeout.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	start := time.Now()
	result, err := s.analyze(ctx, req)

	token := req.WaveConfig
	var total int64
	if result != nil {
		token = result.WaveTransition
		total = int64(result.Statistics.TotalTransitions)
	}
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, req.Variable, token, total, time.Since(start), err)
	return result, err
}

func (s *AnalysisService) analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	table, err := s.datasets.Load(ctx, req.Dataset)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	datasetName := req.Dataset
	if datasetName == "" {
		datasetName = s.datasets.DefaultName()
	}
	result := &AnalysisResult{
		Variable: req.Variable,
		Dataset:  datasetName,
	}

	if req.FilterColumn != "" {
		filtered, stats, err := table.FilterRows(req.FilterColumn, req.FilterValues)
		if err != nil {
			return nil, err
		}
		table = filtered
		result.Filter = &stats
		if len(stats.Unmatched) > 0 {
			s.logger.WarnContext(ctx, "Filter values matched no rows",
				slog.String("column", req.FilterColumn),
				slog.Any("unmatched", stats.Unmatched))
		}
	}

	resolution, err := s.resolver.Resolve(req.WaveConfig)
	if err != nil {
		return nil, err
	}
	sourceColumn, targetColumn := resolution.Columns(req.Variable)

	records, stats, err := s.aggregator.Aggregate(ctx, table, transitions.Request{
		SourceColumn: sourceColumn,
		TargetColumn: targetColumn,
		Variable:     req.Variable,
		WaveLabel:    resolution.Label(),
		TopN:         req.TopN,
	})
	if err != nil {
		return nil, err
	}

	matrix, err := transitions.BuildMatrix(records)
	if err != nil {
		return nil, err
	}

	topN := req.TopN
	if topN <= 0 {
		topN = s.topN
	}

	result.WaveTransition = resolution.Token
	result.WaveLabel = resolution.Label()
	result.SourceColumn = sourceColumn
	result.TargetColumn = targetColumn
	result.Records = records
	result.Statistics = stats
	result.Matrix = matrix
	result.Patterns = transitions.AnalyzePatterns(records, topN)
	if s.colors != nil {
		result.NodeColors = &NodeColors{
			Source: s.colors.Colors(req.Variable, matrix.SourceCategories),
			Target: s.colors.Colors(req.Variable, matrix.TargetCategories),
		}
	}

	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("variable", req.Variable),
		slog.String("wave_transition", resolution.Token),
		slog.Int("transitions", stats.TotalTransitions),
		slog.Int("patterns", stats.UniquePatterns))
	return result, nil
}

// BatchRequest analyzes several variables over the same dataset and wave
// pair.
type BatchRequest struct {
	Dataset    string   `json:"dataset,omitempty" validate:"omitempty,filename"`
	Variables  []string `json:"variables" validate:"required,min=1,max=50,unique,dive,required,max=100"`
	WaveConfig string   `json:"wave_config" validate:"required,wavetoken"`
	TopN       int      `json:"top_n,omitempty" validate:"omitempty,min=1,max=100"`
}

// BatchEntry is the per-variable outcome of a batch analysis. A failed
// variable carries the error text instead of a result.
type BatchEntry struct {
	Variable string          `json:"variable"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// AnalyzeBatch runs one analysis per requested variable with bounded
// concurrency. A variable that fails does not stop the others; its entry
// records the error. The batch as a whole fails only on invalid input or
// when the context ends.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, req BatchRequest) ([]BatchEntry, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	entries := make([]BatchEntry, len(req.Variables))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, variable := range req.Variables {
		g.Go(func() error {
			result, err := s.Analyze(gCtx, AnalysisRequest{
				Dataset:    req.Dataset,
				Variable:   variable,
				WaveConfig: req.WaveConfig,
				TopN:       req.TopN,
			})
			if err != nil && gCtx.Err() != nil {
				return gCtx.Err()
			}

			entry := BatchEntry{Variable: variable}
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Result = result
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, entry := range entries {
		if entry.Error != "" {
			failed++
		}
	}
	s.logger.InfoContext(ctx, "batch analysis completed",
		slog.Int("variables", len(req.Variables)),
		slog.Int("failed", failed))
	return entries, nil
}
