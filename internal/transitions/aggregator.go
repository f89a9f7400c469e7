package transitions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"wavecli/internal/dataset"
)

// Record is one aggregated transition: every respondent who answered
// Source at the source wave and Target at the target wave.
type Record struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Statistics summarizes one aggregation run.
type Statistics struct {
	// TotalTransitions is the number of complete-case rows, the
	// denominator for every percentage.
	TotalTransitions int `json:"total_transitions"`
	// UniquePatterns is the number of distinct (source, target) pairs.
	UniquePatterns int `json:"unique_patterns"`
	// StabilityRate is the percentage of transitions whose source and
	// target labels are exactly equal, in [0, 100].
	StabilityRate float64 `json:"stability_rate"`
	// TopPatterns is a prefix of the sorted record sequence.
	TopPatterns []Record `json:"top_patterns"`
	// VariableAnalyzed and WaveTransition echo the request for
	// traceability in reports.
	VariableAnalyzed string `json:"variable_analyzed,omitempty"`
	WaveTransition   string `json:"wave_transition,omitempty"`
	// SourceColumn and TargetColumn are the dataset columns analyzed.
	SourceColumn string `json:"source_column"`
	TargetColumn string `json:"target_column"`
}

// Config bounds what the aggregator accepts as a categorical column and
// sets the default top-pattern cut.
type Config struct {
	// MinCategories is the least distinct labels a column may have.
	MinCategories int
	// MaxCategories is the most distinct labels a column may have.
	MaxCategories int
	// TopN is the default TopPatterns length when a request does not set
	// its own.
	TopN int
}

// DefaultConfig returns the standard aggregation bounds.
func DefaultConfig() Config {
	return Config{
		MinCategories: 2,
		MaxCategories: 50,
		TopN:          10,
	}
}

// Request names the columns to aggregate plus optional report metadata.
type Request struct {
	// SourceColumn and TargetColumn must exist in the dataset and hold
	// categorical labels.
	SourceColumn string
	TargetColumn string
	// Variable and WaveLabel are echoed into Statistics when set.
	Variable  string
	WaveLabel string
	// TopN overrides the configured top-pattern cut when positive.
	TopN int
}

// Aggregator turns column pairs into transition records. Safe for
// concurrent use; it holds only configuration.
type Aggregator struct {
	logger        *slog.Logger
	minCategories int
	maxCategories int
	topN          int
}

// NewAggregator creates an aggregator with the given bounds. Zero config
// fields fall back to the defaults; a nil logger uses slog.Default().
func NewAggregator(logger *slog.Logger, config Config) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.MinCategories <= 0 {
		config.MinCategories = defaults.MinCategories
	}
	if config.MaxCategories <= 0 {
		config.MaxCategories = defaults.MaxCategories
	}
	if config.TopN <= 0 {
		config.TopN = defaults.TopN
	}
	return &Aggregator{
		logger:        logger,
		minCategories: config.MinCategories,
		maxCategories: config.MaxCategories,
		topN:          config.TopN,
	}
}

// Aggregate computes the transition records and statistics for a column
// pair. Records come back sorted descending by count; equal counts keep
// the order in which their pair was first observed in the data.
//
// Column existence and categorical cardinality are verified here
// regardless of any validation the caller already did.
func (a *Aggregator) Aggregate(ctx context.Context, table *dataset.Table, req Request) ([]Record, Statistics, error) {
	start := time.Now()

	if table == nil {
		return nil, Statistics{}, fmt.Errorf("dataset is required")
	}

	sourceIdx, err := a.validateColumn(table, req.SourceColumn)
	if err != nil {
		return nil, Statistics{}, err
	}
	targetIdx, err := a.validateColumn(table, req.TargetColumn)
	if err != nil {
		return nil, Statistics{}, err
	}

	// Group complete-case rows by (source, target), preserving the order
	// in which each pair first appears.
	type group struct {
		source string
		target string
		count  int
	}
	groupIndex := make(map[[2]string]int)
	var groups []group
	total := 0
	dropped := 0

	for row := 0; row < table.RowCount(); row++ {
		source := table.At(row, sourceIdx)
		target := table.At(row, targetIdx)
		if !source.Valid || !target.Valid {
			dropped++
			continue
		}
		total++
		key := [2]string{source.Label, target.Label}
		if i, seen := groupIndex[key]; seen {
			groups[i].count++
			continue
		}
		groupIndex[key] = len(groups)
		groups = append(groups, group{source: source.Label, target: target.Label, count: 1})
	}

	if total == 0 {
		return nil, Statistics{}, &ValidationError{
			Reason: fmt.Sprintf("no rows with values in both %q and %q to analyze", req.SourceColumn, req.TargetColumn),
		}
	}

	records := make([]Record, len(groups))
	for i, g := range groups {
		records[i] = Record{
			Source:     g.source,
			Target:     g.target,
			Count:      g.count,
			Percentage: 100 * float64(g.count) / float64(total),
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Count > records[j].Count
	})

	stable := 0
	for _, r := range records {
		if r.Source == r.Target {
			stable += r.Count
		}
	}

	topN := req.TopN
	if topN <= 0 {
		topN = a.topN
	}
	if topN > len(records) {
		topN = len(records)
	}
	top := make([]Record, topN)
	copy(top, records[:topN])

	stats := Statistics{
		TotalTransitions: total,
		UniquePatterns:   len(records),
		StabilityRate:    100 * float64(stable) / float64(total),
		TopPatterns:      top,
		VariableAnalyzed: req.Variable,
		WaveTransition:   req.WaveLabel,
		SourceColumn:     req.SourceColumn,
		TargetColumn:     req.TargetColumn,
	}

	a.logger.InfoContext(ctx, "transitions aggregated",
		slog.String("source_column", req.SourceColumn),
		slog.String("target_column", req.TargetColumn),
		slog.Int("total_transitions", total),
		slog.Int("dropped_incomplete", dropped),
		slog.Int("unique_patterns", len(records)),
		slog.Float64("stability_rate", stats.StabilityRate),
		slog.Duration("duration", time.Since(start)))

	return records, stats, nil
}

// validateColumn checks existence and categorical cardinality, returning
// the column's position.
func (a *Aggregator) validateColumn(table *dataset.Table, column string) (int, error) {
	idx, ok := table.ColumnIndex(column)
	if !ok {
		return 0, dataset.NewColumnNotFoundError(column, table.Columns())
	}

	distinct, err := table.Cardinality(column)
	if err != nil {
		return 0, err
	}
	if distinct < a.minCategories || distinct > a.maxCategories {
		return 0, &ValidationError{
			Column: column,
			Reason: fmt.Sprintf("%d distinct values, outside categorical bounds [%d, %d]",
				distinct, a.minCategories, a.maxCategories),
		}
	}
	return idx, nil
}
