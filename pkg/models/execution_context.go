package models

import "time"

// ExecutionError is one entry in the execution's append-only error log.
type ExecutionError struct {
	StepID    string    `json:"step_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionContext is the mutable data threaded through a single execution's
// steps. The engine guarantees steps of one execution never run concurrently;
// cross-goroutine observers read through WorkflowExecution.Snapshot, whose
// lock also covers the engine's writes here, so no locking happens in this
// type itself.
type ExecutionContext struct {
	WorkflowID    string           `json:"workflow_id"`
	ExecutionID   string           `json:"execution_id"`
	CurrentStepID string           `json:"current_step_id,omitempty"`
	Data          map[string]any   `json:"data"`
	Errors        []ExecutionError `json:"errors,omitempty"`
	RetryCounts   map[string]int   `json:"retry_counts,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
}

func NewExecutionContext(workflowID, executionID string, input map[string]any) *ExecutionContext {
	data := make(map[string]any, len(input))
	for k, v := range input {
		data[k] = v
	}

	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Data:        data,
		RetryCounts: make(map[string]int),
		StartedAt:   time.Now().UTC(),
	}
}

// RecordError appends to the error log.
func (c *ExecutionContext) RecordError(stepID, message string) {
	c.Errors = append(c.Errors, ExecutionError{
		StepID:    stepID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (c *ExecutionContext) Attempts(stepID string) int {
	return c.RetryCounts[stepID]
}

func (c *ExecutionContext) IncrementAttempts(stepID string) {
	c.RetryCounts[stepID]++
}

func (c *ExecutionContext) ResetAttempts(stepID string) {
	delete(c.RetryCounts, stepID)
}

func (c *ExecutionContext) snapshot() *ExecutionContext {
	data := make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}

	counts := make(map[string]int, len(c.RetryCounts))
	for k, v := range c.RetryCounts {
		counts[k] = v
	}

	return &ExecutionContext{
		WorkflowID:    c.WorkflowID,
		ExecutionID:   c.ExecutionID,
		CurrentStepID: c.CurrentStepID,
		Data:          data,
		Errors:        append([]ExecutionError(nil), c.Errors...),
		RetryCounts:   counts,
		StartedAt:     c.StartedAt,
	}
}
