package pipeline

import (
	"time"
)

// Step identifiers, in canonical execution order.
const (
	StepIDLoad    = "load"
	StepIDLabels  = "labels"
	StepIDMissing = "missing"
	StepIDMerge   = "merge"
	StepIDFilter  = "filter"
	StepIDSave    = "save"
)

// Human-readable step names.
const (
	StepNameLoad    = "Load Dataset"
	StepNameLabels  = "Value Labels"
	StepNameMissing = "Missing Values"
	StepNameMerge   = "Value Merging"
	StepNameFilter  = "Row Filters"
	StepNameSave    = "Save Processed Data"
)

// Config keys set from the run request.
const (
	ConfigKeyDatasetPath = "dataset_path"
	ConfigKeyOutputPath  = "output_path"
)

// Context keys for values steps pass along the run.
const (
	ContextKeyTable       = "table"
	ContextKeyRowsLoaded  = "rows_loaded"
	ContextKeyRowsDropped = "rows_dropped"
	ContextKeyOutputFile  = "output_file"
)

// Default per-step timeouts. Loading dominates because the raw export
// can be large; everything downstream works on the in-memory table.
const (
	DefaultStepTimeout = 2 * time.Minute
	DefaultLoadTimeout = 5 * time.Minute
)

// RetryConfig defines retry behavior for steps that report retryable
// failures.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Request describes a pipeline run.
type Request struct {
	ID          string         `json:"id,omitempty"`
	DatasetPath string         `json:"dataset_path,omitempty"`
	OutputPath  string         `json:"output_path,omitempty"`
	Step        string         `json:"step,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Response reports the outcome of a pipeline run.
type Response struct {
	ID       string                `json:"id"`
	Status   RunStatus             `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}
