package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// StageProgress tracks which steps of the definition ran successfully, which
// one is current, which were skipped or routed away from, and which remain.
type StageProgress struct {
	Completed []string `json:"completed"`
	Current   string   `json:"current,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
	Remaining []string `json:"remaining"`
}

func (p StageProgress) snapshot() StageProgress {
	return StageProgress{
		Completed: append([]string(nil), p.Completed...),
		Current:   p.Current,
		Skipped:   append([]string(nil), p.Skipped...),
		Remaining: append([]string(nil), p.Remaining...),
	}
}

// WorkflowExecution is one run of a workflow. Status transitions are
// monotonic (pending -> running -> terminal) and guarded by a mutex so
// cancellation may arrive from another goroutine; a terminal execution is
// never reopened.
type WorkflowExecution struct {
	ID         string            `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	Status     ExecutionStatus   `json:"status"`
	Context    *ExecutionContext `json:"context"`
	StepIndex  int               `json:"step_index"`
	Progress   float64           `json:"progress"`
	Stages     StageProgress     `json:"stages"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Duration   time.Duration     `json:"duration"`

	mu sync.Mutex
}

func NewWorkflowExecution(workflowID string, input map[string]any) *WorkflowExecution {
	id := "exec-" + uuid.New().String()

	return &WorkflowExecution{
		ID:         id,
		WorkflowID: workflowID,
		Status:     ExecutionStatusPending,
		Context:    NewExecutionContext(workflowID, id, input),
		StartedAt:  time.Now().UTC(),
	}
}

// Start moves pending -> running. Returns false if the execution already
// left pending.
func (e *WorkflowExecution) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status != ExecutionStatusPending {
		return false
	}

	e.Status = ExecutionStatusRunning

	return true
}

// Finish moves running -> the given terminal status, stamping FinishedAt and
// Duration. It refuses non-terminal targets and never reopens or overwrites
// a terminal state.
func (e *WorkflowExecution) Finish(status ExecutionStatus) bool {
	if !status.Terminal() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.Terminal() || e.Status != ExecutionStatusRunning {
		return false
	}

	e.Status = status
	now := time.Now().UTC()
	e.FinishedAt = &now
	e.Duration = now.Sub(e.StartedAt)

	return true
}

// Cancel is Finish(cancelled); split out because it is the one transition
// initiated outside the engine loop.
func (e *WorkflowExecution) Cancel() bool {
	return e.Finish(ExecutionStatusCancelled)
}

func (e *WorkflowExecution) CurrentStatus() ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.Status
}

// Running reports whether the engine may schedule another step.
func (e *WorkflowExecution) Running() bool {
	return e.CurrentStatus() == ExecutionStatusRunning
}

// SetStages records stage progress. All engine writes to an execution go
// through the lock so snapshots taken by observers never see a half-updated
// view.
func (e *WorkflowExecution) SetStages(stages StageProgress, stepIndex int, progress float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Stages = stages
	e.StepIndex = stepIndex
	e.Progress = progress
}

func (e *WorkflowExecution) SetCurrentStep(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Context.CurrentStepID = stepID
}

func (e *WorkflowExecution) RecordStepResult(stepID string, result map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Context.Data[stepID] = result
}

func (e *WorkflowExecution) RecordStepError(stepID, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Context.RecordError(stepID, message)
}

func (e *WorkflowExecution) IncrementAttempts(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Context.IncrementAttempts(stepID)
}

func (e *WorkflowExecution) ResetAttempts(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Context.ResetAttempts(stepID)
}

// Snapshot returns a copy of the execution safe to read or serialize while
// the engine is still advancing the original.
func (e *WorkflowExecution) Snapshot() *WorkflowExecution {
	e.mu.Lock()
	defer e.mu.Unlock()

	return &WorkflowExecution{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		Status:     e.Status,
		Context:    e.Context.snapshot(),
		StepIndex:  e.StepIndex,
		Progress:   e.Progress,
		Stages:     e.Stages.snapshot(),
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
		Duration:   e.Duration,
	}
}
