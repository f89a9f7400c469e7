package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// Hub carries run snapshots to connected websocket clients.
type Hub interface {
	BroadcastUpdate(eventType, subtype, action string, payload interface{})
}

// EventRunSnapshot is the websocket event type for run snapshots.
const EventRunSnapshot = "pipeline:snapshot"

// StatusBroadcaster is the single authority for run status updates. It
// holds the snapshot of every run and broadcasts the complete snapshot
// after each change, so clients never have to merge partial events.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	runs    map[string]*RunSnapshot
	hub     Hub
	logger  *slog.Logger
	updates chan updateRequest
	stop    chan struct{}
}

// RunSnapshot is the complete public state of a run at a point in time.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"`
	Progress    int            `json:"progress"`
	CurrentStep string         `json:"current_step"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot is the public state of a single step.
type StepSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type updateRequest struct {
	runID      string
	updateFunc func(*RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a broadcaster publishing to hub. A nil
// hub disables broadcasting but keeps snapshots queryable.
func NewStatusBroadcaster(hub Hub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*RunSnapshot),
		hub:     hub,
		logger:  logger,
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates applies updates one at a time so snapshot mutation
// never races.
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	snapshot, exists := sb.runs[req.runID]
	if !exists {
		snapshot = &RunSnapshot{
			RunID:     req.runID,
			Status:    string(RunStatusPending),
			StartedAt: time.Now(),
			UpdatedAt: time.Now(),
			Steps:     []StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if terminal(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	sb.broadcast(snapshot)
}

func terminal(status string) bool {
	switch RunStatus(status) {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

func (sb *StatusBroadcaster) broadcast(snapshot *RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep))

	sb.hub.BroadcastUpdate(EventRunSnapshot, snapshot.RunID, "update", snapshot)
}

// UpdateStatus applies an update to a run snapshot and broadcasts the
// result. It blocks until the update has been applied. Updates arriving
// after Stop are dropped rather than blocking the caller.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}

	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateRun initializes a run snapshot with the given step IDs, in
// execution order.
func (sb *StatusBroadcaster) CreateRun(runID string, steps []StepSnapshot) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusPending)
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(steps))
		for i, step := range steps {
			snapshot.Steps[i] = StepSnapshot{
				ID:     step.ID,
				Name:   step.Name,
				Status: string(StepStatusPending),
			}
		}
		snapshot.Message = "Run created"
	})
}

// StartRun marks a run as running.
func (sb *StatusBroadcaster) StartRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusRunning)
		snapshot.Message = "Run started"
	})
}

// UpdateStepProgress updates one step's progress. Progress never moves
// backwards while a step is running, so late events cannot make the
// display regress.
func (sb *StatusBroadcaster) UpdateStepProgress(runID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(runID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates one step's progress and metadata.
func (sb *StatusBroadcaster) UpdateStepWithMetadata(runID, stepID string, progress int, message string, metadata map[string]any) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID != stepID {
				continue
			}
			if progress >= snapshot.Steps[i].Progress || snapshot.Steps[i].Status != string(StepStatusActive) {
				snapshot.Steps[i].Progress = clampProgress(progress)
			}
			snapshot.Steps[i].Message = message
			if metadata != nil {
				snapshot.Steps[i].Metadata = metadata
			}
			if progress >= 100 {
				snapshot.Steps[i].Status = string(StepStatusCompleted)
			} else {
				snapshot.Steps[i].Status = string(StepStatusActive)
				snapshot.CurrentStep = snapshot.Steps[i].Name
			}
			return
		}
	})
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// CompleteStep marks a step as completed.
func (sb *StatusBroadcaster) CompleteStep(runID, stepID, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = string(StepStatusCompleted)
				snapshot.Steps[i].Progress = 100
				snapshot.Steps[i].Message = message
				return
			}
		}
	})
}

// FailStep marks a step as failed.
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = string(StepStatusFailed)
				snapshot.Steps[i].Error = err.Error()
				return
			}
		}
	})
}

// SkipStep marks a step as skipped with a reason.
func (sb *StatusBroadcaster) SkipStep(runID, stepID, reason string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = string(StepStatusSkipped)
				snapshot.Steps[i].Message = reason
				return
			}
		}
	})
}

// CompleteRun marks a run as completed and closes out any step still
// showing as pending or active.
func (sb *StatusBroadcaster) CompleteRun(runID, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusCompleted)
		snapshot.Progress = 100
		snapshot.CurrentStep = ""
		snapshot.Message = message
		for i := range snapshot.Steps {
			switch snapshot.Steps[i].Status {
			case string(StepStatusPending), string(StepStatusActive):
				snapshot.Steps[i].Status = string(StepStatusCompleted)
				snapshot.Steps[i].Progress = 100
			}
		}
	})
}

// FailRun marks a run as failed.
func (sb *StatusBroadcaster) FailRun(runID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusFailed)
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelRun marks a run as cancelled.
func (sb *StatusBroadcaster) CancelRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Run cancelled"
	})
}

// GetSnapshot returns a copy of the snapshot for a run.
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}

	copied := *snapshot
	copied.Steps = append([]StepSnapshot(nil), snapshot.Steps...)
	return &copied, true
}

// GetAllSnapshots returns copies of every run snapshot.
func (sb *StatusBroadcaster) GetAllSnapshots() []*RunSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*RunSnapshot, 0, len(sb.runs))
	for _, snapshot := range sb.runs {
		copied := *snapshot
		copied.Steps = append([]StepSnapshot(nil), snapshot.Steps...)
		snapshots = append(snapshots, &copied)
	}
	return snapshots
}

// CleanupOldRuns drops finished runs older than maxAge.
func (sb *StatusBroadcaster) CleanupOldRuns(maxAge time.Duration) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	for id, snapshot := range sb.runs {
		if !terminal(snapshot.Status) || snapshot.CompletedAt == nil {
			continue
		}
		if now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			sb.logger.Info("cleaned up old run",
				slog.String("run_id", id),
				slog.String("status", snapshot.Status))
		}
	}
}

// Stop shuts down the update processor.
func (sb *StatusBroadcaster) Stop() {
	close(sb.stop)
}
