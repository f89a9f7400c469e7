package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"wavecli/internal/infrastructure"
)

// activeRun pairs a run's state with the cancel function that stops it.
type activeRun struct {
	state  *RunState
	cancel context.CancelFunc
}

// Manager executes pipeline runs. It resolves step order through the
// registry, enforces per-step timeouts, retries retryable failures and
// publishes progress through the status broadcaster.
type Manager struct {
	registry    *Registry
	config      *Config
	hub         Hub
	broadcaster *StatusBroadcaster
	metrics     *infrastructure.BusinessMetrics
	logger      *slog.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun
}

// NewManager creates a pipeline manager. hub and metrics may be nil;
// progress broadcasting and metrics are then disabled.
func NewManager(hub Hub, registry *Registry, config *Config, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, logger),
		metrics:     metrics,
		logger:      logger,
		runs:        make(map[string]*activeRun),
	}
}

// Registry returns the step registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Broadcaster returns the status broadcaster, so steps can be built
// with progress reporting wired in.
func (m *Manager) Broadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// Config returns the run configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// Execute runs the pipeline described by the request and blocks until
// it finishes. With req.Step set only that step runs; otherwise every
// registered step runs in dependency order.
func (m *Manager) Execute(ctx context.Context, req Request) (*Response, error) {
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	var steps []Step
	if req.Step != "" {
		step, err := m.registry.Get(req.Step)
		if err != nil {
			return nil, NewStepValidationError(req.Step, "step not registered")
		}
		steps = []Step{step}
	} else {
		ordered, err := m.registry.DependencyOrder()
		if err != nil {
			return nil, NewFatalError("resolve step order", err)
		}
		steps = ordered
	}
	if len(steps) == 0 {
		return nil, NewStepValidationError("", "no steps registered")
	}

	state := NewRunState(id)
	state.SetConfig(ConfigKeyDatasetPath, req.DatasetPath)
	state.SetConfig(ConfigKeyOutputPath, req.OutputPath)
	for key, value := range req.Parameters {
		state.SetConfig(key, value)
	}

	snapshots := make([]StepSnapshot, 0, len(steps))
	for _, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		snapshots = append(snapshots, StepSnapshot{ID: step.ID(), Name: step.Name()})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	m.runs[id] = &activeRun{state: state, cancel: cancel}
	m.mu.Unlock()

	m.broadcaster.CreateRun(id, snapshots)
	state.Start()
	m.broadcaster.StartRun(id)
	infrastructure.RecordActiveRunChange(ctx, m.metrics, 1)
	defer infrastructure.RecordActiveRunChange(ctx, m.metrics, -1)

	m.logger.Info("pipeline run started",
		slog.String("run_id", id),
		slog.Int("steps", len(steps)),
		slog.String("dataset", req.DatasetPath))

	start := time.Now()
	err := m.executeSequential(runCtx, state, steps, req.Step != "")
	duration := time.Since(start)

	var runErr *RunError
	switch {
	case err == nil:
		state.Complete()
		m.broadcaster.CompleteRun(id, "Pipeline completed")
	case errors.As(err, &runErr) && runErr.Kind == ErrorKindCancelled:
		state.Cancel()
		m.broadcaster.CancelRun(id)
		reason := "user_requested"
		if ctx.Err() != nil {
			reason = "context_cancelled"
		}
		infrastructure.RecordPipelineCancellation(ctx, m.metrics, id, reason)
	default:
		state.Fail(err)
		m.broadcaster.FailRun(id, err)
	}

	status := state.CurrentStatus()
	infrastructure.RecordPipelineRunMetrics(ctx, m.metrics, id, string(status), duration)
	m.logger.Info("pipeline run finished",
		slog.String("run_id", id),
		slog.String("status", string(status)),
		slog.Duration("duration", duration))

	clone := state.Clone()
	resp := &Response{
		ID:       id,
		Status:   status,
		Duration: duration,
		Steps:    clone.Steps,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, err
}

// executeSequential runs the steps one at a time in the given order.
func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step, single bool) error {
	var firstErr error
	for _, step := range steps {
		select {
		case <-ctx.Done():
			return NewCancellationError(step.ID())
		default:
		}

		err := m.executeStep(ctx, state, step, single)
		if err == nil {
			continue
		}

		var runErr *RunError
		if errors.As(err, &runErr) && runErr.Kind == ErrorKindCancelled {
			return err
		}

		if m.config.ContinueOnError {
			m.logger.Warn("continuing after step failure",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		m.skipDependents(state, steps, step.ID())
		return err
	}
	return firstErr
}

// executeStep runs one step with dependency checking, validation, a
// timeout and retries for retryable failures.
func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step, single bool) error {
	stepState := state.GetStep(step.ID())
	if stepState == nil {
		stepState = NewStepState(step.ID(), step.Name())
		state.SetStep(step.ID(), stepState)
	}
	if stepState.CurrentStatus() == StepStatusSkipped {
		return nil
	}

	if !single {
		if err := m.checkDependencies(state, step); err != nil {
			reason := err.Error()
			stepState.Skip(reason)
			m.broadcaster.SkipStep(state.ID, step.ID(), reason)
			return err
		}
	}

	if err := step.Validate(state); err != nil {
		reason := fmt.Sprintf("validation failed: %v", err)
		stepState.Skip(reason)
		m.broadcaster.SkipStep(state.ID, step.ID(), reason)
		return WrapError(err, step.ID(), "")
	}

	timeout := m.config.StepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stepState.Start()
	m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 0, "Starting "+step.Name())
	m.logger.Info("step started",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()))

	retry := m.config.RetryConfig
	var lastErr error
retryLoop:
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := calculateRetryDelay(retry, attempt-1)
			m.logger.Warn("retrying step",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-stepCtx.Done():
				lastErr = stepCtx.Err()
				break retryLoop
			case <-time.After(delay):
			}
		}

		stepStart := time.Now()
		err := step.Execute(stepCtx, state)
		infrastructure.RecordPipelineStepMetrics(ctx, m.metrics, state.ID, step.ID(), time.Since(stepStart), err == nil)

		if err == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), step.Name()+" completed")
			m.logger.Info("step completed",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", stepState.Duration()))
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	switch {
	case ctx.Err() != nil:
		lastErr = NewCancellationError(step.ID())
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		lastErr = NewTimeoutError(step.ID(), timeout.String())
	}

	stepState.Fail(lastErr)
	m.broadcaster.FailStep(state.ID, step.ID(), lastErr)
	m.logger.Error("step failed",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()),
		slog.String("error", lastErr.Error()))
	return WrapError(lastErr, step.ID(), "")
}

// checkDependencies verifies every dependency of a step completed.
func (m *Manager) checkDependencies(state *RunState, step Step) error {
	for _, dep := range step.Dependencies() {
		depState := state.GetStep(dep)
		if depState == nil || depState.CurrentStatus() != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep)
		}
	}
	return nil
}

// skipDependents marks every pending step that transitively depends on
// the failed step as skipped.
func (m *Manager) skipDependents(state *RunState, steps []Step, failedID string) {
	for _, step := range steps {
		for _, dep := range step.Dependencies() {
			if dep != failedID {
				continue
			}
			stepState := state.GetStep(step.ID())
			if stepState == nil || stepState.CurrentStatus() != StepStatusPending {
				continue
			}
			reason := fmt.Sprintf("dependency %s did not complete", failedID)
			stepState.Skip(reason)
			m.broadcaster.SkipStep(state.ID, step.ID(), reason)
			m.skipDependents(state, steps, step.ID())
		}
	}
}

// calculateRetryDelay returns the backoff delay before the given retry,
// growing exponentially up to the configured maximum.
func calculateRetryDelay(config RetryConfig, retryNumber int) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(retryNumber-1)))
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// GetRun returns a copy of a run's state.
func (m *Manager) GetRun(id string) (*RunState, error) {
	m.mu.RLock()
	run, exists := m.runs[id]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrRunNotFound
	}
	return run.state.Clone(), nil
}

// ListRuns returns copies of every known run's state.
func (m *Manager) ListRuns() []*RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*RunState, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run.state.Clone())
	}
	return runs
}

// CancelRun stops a running pipeline. Cancelling a finished run is a
// no-op.
func (m *Manager) CancelRun(id string) error {
	m.mu.RLock()
	run, exists := m.runs[id]
	m.mu.RUnlock()

	if !exists {
		return ErrRunNotFound
	}

	m.logger.Info("cancelling pipeline run", slog.String("run_id", id))
	run.cancel()
	return nil
}

// CleanupOldRuns drops finished runs older than maxAge from the manager
// and the broadcaster.
func (m *Manager) CleanupOldRuns(maxAge time.Duration) {
	now := time.Now()

	m.mu.Lock()
	for id, run := range m.runs {
		clone := run.state.Clone()
		switch clone.Status {
		case RunStatusPending, RunStatusRunning:
			continue
		}
		if clone.EndTime != nil && now.Sub(*clone.EndTime) > maxAge {
			delete(m.runs, id)
		}
	}
	m.mu.Unlock()

	m.broadcaster.CleanupOldRuns(maxAge)
}

// Stop cancels every active run and shuts down the broadcaster.
func (m *Manager) Stop() {
	m.mu.Lock()
	for _, run := range m.runs {
		run.cancel()
	}
	m.mu.Unlock()

	m.broadcaster.Stop()
}
