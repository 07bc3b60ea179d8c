// Package models defines the core domain model for capability-routed
// workflow orchestration: definitions, steps, conditions, retry policy and
// execution state.
package models

type ErrorHandlingType string

const (
	ErrorHandlingStop     ErrorHandlingType = "stop"
	ErrorHandlingSkip     ErrorHandlingType = "skip"
	ErrorHandlingRetry    ErrorHandlingType = "retry"
	ErrorHandlingFallback ErrorHandlingType = "fallback"
)

// ErrorHandling is the workflow-level policy applied once a step's retries
// are exhausted. An empty Type behaves as stop.
type ErrorHandling struct {
	Type          ErrorHandlingType `json:"type"                    validate:"omitempty,oneof=stop skip retry fallback"`
	FallbackStep  string            `json:"fallback_step,omitempty"`
	NotifyOnError bool              `json:"notify_on_error"`
}

// Workflow is a named, ordered graph of capability-bound steps with a shared
// error-handling policy. Definitions are immutable once registered.
type Workflow struct {
	ID            string          `json:"id"                validate:"required"`
	Name          string          `json:"name"              validate:"required,min=3"`
	Description   string          `json:"description,omitempty"`
	Steps         []*WorkflowStep `json:"steps"             validate:"required,min=1,dive"`
	ErrorHandling ErrorHandling   `json:"error_handling"`
	Timeout       Duration        `json:"timeout,omitempty"`
}

func (w *Workflow) StepByID(id string) (*WorkflowStep, bool) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}

// StepIDs returns the step ids in definition order.
func (w *Workflow) StepIDs() []string {
	ids := make([]string, 0, len(w.Steps))
	for _, step := range w.Steps {
		ids = append(ids, step.ID)
	}

	return ids
}
