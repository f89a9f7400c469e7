package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wavecli/internal/config"
	"wavecli/internal/infrastructure"
	"wavecli/internal/pipeline"
)

// PipelineService owns the cleaning pipeline. It wires the standard
// steps into a manager and runs them on request, in the background for
// HTTP callers or synchronously for command-line use. Progress reaches
// clients through the hub the manager broadcasts to.
type PipelineService struct {
	manager *pipeline.Manager
	logger  *slog.Logger

	// pending tracks accepted runs until the manager registers them,
	// so a status request racing the goroutine still sees the run.
	mu      sync.Mutex
	pending map[string]time.Time
}

// NewPipelineService builds the service with the standard step set on
// the standard path layout.
func NewPipelineService(hub pipeline.Hub, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*PipelineService, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize paths: %w", err)
	}
	return NewPipelineServiceWithPaths(paths, hub, metrics, logger)
}

// NewPipelineServiceWithPaths builds the service over an explicit path
// layout.
func NewPipelineServiceWithPaths(paths *config.Paths, hub pipeline.Hub, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*PipelineService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	manager := pipeline.NewManager(hub, pipeline.NewRegistry(), pipeline.NewConfig(), metrics, logger)
	if err := registerSteps(manager, paths, logger); err != nil {
		return nil, fmt.Errorf("failed to register steps: %w", err)
	}

	return &PipelineService{
		manager: manager,
		logger:  logger,
		pending: make(map[string]time.Time),
	}, nil
}

// registerSteps wires the standard cleaning steps into the manager's
// registry, all reporting progress through the manager's broadcaster.
func registerSteps(manager *pipeline.Manager, paths *config.Paths, logger *slog.Logger) error {
	opts := pipeline.StepOptions{Broadcaster: manager.Broadcaster()}

	steps := []pipeline.Step{
		pipeline.NewLoadStep(logger, opts),
		pipeline.NewLabelStep(paths.CleaningSettingsDir, logger, opts),
		pipeline.NewMissingStep(paths.CleaningSettingsDir, logger, opts),
		pipeline.NewMergeStep(paths.CleaningSettingsDir, logger, opts),
		pipeline.NewFilterStep(paths.CleaningSettingsDir, logger, opts),
		pipeline.NewSaveStep(paths.GetProcessedDataPath(), logger, opts),
	}
	for _, step := range steps {
		if err := manager.Registry().Register(step); err != nil {
			return err
		}
	}
	return nil
}

// RunRequest describes a pipeline run to start.
type RunRequest struct {
	// Step runs a single step instead of the whole pipeline.
	Step string `json:"step,omitempty"`
	// DatasetPath is the raw input file for the load step.
	DatasetPath string `json:"dataset_path,omitempty"`
	// OutputPath overrides where the save step writes.
	OutputPath string `json:"output_path,omitempty"`
	// Parameters are copied into the run configuration for the steps.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Start launches a pipeline run in the background and returns its ID.
// The run keeps going after the caller's request finishes; it stops
// through Cancel or its own step timeouts.
func (s *PipelineService) Start(ctx context.Context, req RunRequest) (string, error) {
	if req.Step != "" && !s.manager.Registry().Has(req.Step) {
		return "", pipeline.NewStepValidationError(req.Step, "step not registered")
	}

	id := uuid.New().String()

	s.mu.Lock()
	s.pending[id] = time.Now()
	s.mu.Unlock()

	// Detach from the request's cancellation but keep its values so
	// logs stay correlated.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.pending, id)
			s.mu.Unlock()
		}()

		if _, err := s.manager.Execute(runCtx, pipeline.Request{
			ID:          id,
			Step:        req.Step,
			DatasetPath: req.DatasetPath,
			OutputPath:  req.OutputPath,
			Parameters:  req.Parameters,
		}); err != nil {
			s.logger.Error("pipeline run failed",
				slog.String("run_id", id),
				slog.String("error", err.Error()))
		}
	}()

	s.logger.InfoContext(ctx, "pipeline run accepted",
		slog.String("run_id", id),
		slog.String("step", req.Step))
	return id, nil
}

// Run executes the pipeline synchronously and returns the outcome.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (*pipeline.Response, error) {
	return s.manager.Execute(ctx, pipeline.Request{
		Step:        req.Step,
		DatasetPath: req.DatasetPath,
		OutputPath:  req.OutputPath,
		Parameters:  req.Parameters,
	})
}

// Status returns the state of a run. A run accepted but not yet visible
// in the manager reports as pending.
func (s *PipelineService) Status(id string) (*pipeline.RunState, error) {
	state, err := s.manager.GetRun(id)
	if err == nil {
		return state, nil
	}

	s.mu.Lock()
	_, accepted := s.pending[id]
	s.mu.Unlock()
	if accepted {
		return pipeline.NewRunState(id), nil
	}
	return nil, err
}

// List returns every run the manager still tracks.
func (s *PipelineService) List() []*pipeline.RunState {
	return s.manager.ListRuns()
}

// Cancel stops a running pipeline.
func (s *PipelineService) Cancel(id string) error {
	return s.manager.CancelRun(id)
}

// Steps returns the registered step IDs in registration order, which for
// the standard set matches execution order.
func (s *PipelineService) Steps() []string {
	return s.manager.Registry().ListIDs()
}

// CleanupOldRuns drops finished runs older than maxAge.
func (s *PipelineService) CleanupOldRuns(maxAge time.Duration) {
	s.manager.CleanupOldRuns(maxAge)
}

// Stop shuts the service down, cancelling any active runs.
func (s *PipelineService) Stop() {
	s.manager.Stop()
}
