package models

import (
	"fmt"
	"time"
)

// ValidationError reports a reference to an unknown workflow, step or
// capability. Callers receiving it never get a partially created execution.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StepExecutionError wraps a failure raised by a provider's Process call.
type StepExecutionError struct {
	StepID     string
	Capability string
	Err        error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.StepID, e.Capability, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an operation that exceeded its deadline: a step
// invocation, a wait-for-event, or a request/response exchange.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// RetryExhaustedError reports that every attempt allowed by a RetryPolicy
// was consumed without success. It wraps the last attempt's error.
type RetryExhaustedError struct {
	StepID   string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempts: %v", e.StepID, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
