package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitralabs/maestro/pkg/events"
	"github.com/vitralabs/maestro/pkg/models"
	"github.com/vitralabs/maestro/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

var errExecutionCancelled = errors.New("execution cancelled")

// runSteps advances the execution step by step until a step has no next
// steps (completed), the error strategy stops it (failed), the overall
// deadline expires (failed), or cancellation arrives. Steps of one execution
// never run concurrently with each other.
func (o *Orchestrator) runSteps(ctx context.Context, logger *slog.Logger, def *models.Workflow, exec *models.WorkflowExecution) models.ExecutionStatus {
	if len(def.Steps) == 0 {
		return models.ExecutionStatusCompleted
	}

	allIDs := def.StepIDs()
	completedSet := make(map[string]bool, len(allIDs))
	skippedSet := make(map[string]bool)
	currentID := def.Steps[0].ID

	// advance moves the cursor and maintains stage progress. The step that
	// terminates the workflow stays "current" rather than joining the
	// completed list, and a step that was skipped or routed away from after
	// failing never counts as completed.
	advance := func(nextID string, ran bool) {
		if nextID == "" {
			return
		}

		if ran {
			completedSet[currentID] = true
		} else {
			skippedSet[currentID] = true
		}

		currentID = nextID
		o.updateProgress(exec, allIDs, completedSet, skippedSet, currentID)
	}

	o.updateProgress(exec, allIDs, completedSet, skippedSet, currentID)

	for currentID != "" {
		if !exec.Running() {
			return exec.CurrentStatus()
		}

		if status, expired := o.deadlineStatus(ctx, exec, def, currentID); expired {
			return status
		}

		step, ok := def.StepByID(currentID)
		if !ok {
			exec.RecordStepError(currentID, fmt.Sprintf("step %s not found in workflow %s", currentID, def.ID))

			return models.ExecutionStatusFailed
		}

		exec.SetCurrentStep(step.ID)
		stepLogger := logger.With("step_id", step.ID, "capability", step.Capability)

		pass, condErr := stepConditionsPass(step, exec.Context.Data)
		if condErr != nil {
			exec.RecordStepError(step.ID, condErr.Error())

			nextID, status := o.applyErrorStrategy(ctx, stepLogger, def, exec, step, condErr)
			if status.Terminal() {
				return status
			}

			if nextID == "" {
				return o.completedStatus(ctx, exec, def, step.ID)
			}

			advance(nextID, false)

			continue
		}

		if !pass {
			stepLogger.Info("Step conditions not met, skipping")
			o.bus.EmitFrom(ctx, events.StepSkippedEvent, o.stepPayload(exec, step), "orchestrator", "")

			next := step.FirstNextStage()
			if next == "" {
				return o.completedStatus(ctx, exec, def, step.ID)
			}

			advance(next, false)

			continue
		}

		result, stepErr := o.executeStepWithRetries(ctx, stepLogger, exec, step)
		if stepErr != nil {
			if !exec.Running() {
				return exec.CurrentStatus()
			}

			nextID, status := o.applyErrorStrategy(ctx, stepLogger, def, exec, step, stepErr)
			if status.Terminal() {
				return status
			}

			if nextID == "" {
				return o.completedStatus(ctx, exec, def, step.ID)
			}

			advance(nextID, false)

			continue
		}

		// Cancellation during the invocation discards its result.
		if !exec.Running() {
			return exec.CurrentStatus()
		}

		exec.RecordStepResult(step.ID, result)

		payload := o.stepPayload(exec, step)
		payload["result"] = result
		o.bus.EmitFrom(ctx, events.StepCompletedEvent, payload, "orchestrator", "")

		next := step.SuccessTarget()
		if next == "" {
			return o.completedStatus(ctx, exec, def, step.ID)
		}

		advance(next, true)
	}

	return models.ExecutionStatusCompleted
}

// deadlineStatus reports whether the execution's context is already done.
// Expiry is recorded against stepID and fails the execution; no further step
// is scheduled past an exhausted budget, whatever the error strategy.
func (o *Orchestrator) deadlineStatus(ctx context.Context, exec *models.WorkflowExecution, def *models.Workflow, stepID string) (models.ExecutionStatus, bool) {
	err := ctx.Err()
	if err == nil {
		return "", false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		err = &models.TimeoutError{Op: "workflow " + def.ID, Timeout: def.Timeout.Std()}
	}

	exec.RecordStepError(stepID, err.Error())

	return models.ExecutionStatusFailed, true
}

// completedStatus is the success-path terminal check: a workflow may not
// finish completed after its overall deadline already expired, even when a
// context-ignoring provider kept running past it.
func (o *Orchestrator) completedStatus(ctx context.Context, exec *models.WorkflowExecution, def *models.Workflow, stepID string) models.ExecutionStatus {
	if status, expired := o.deadlineStatus(ctx, exec, def, stepID); expired {
		return status
	}

	return models.ExecutionStatusCompleted
}

// executeStepWithRetries resolves the step input once, then invokes the
// provider up to MaxAttempts times, pausing per the backoff strategy between
// attempts. The returned error is the retry-exhausted escalation.
func (o *Orchestrator) executeStepWithRetries(ctx context.Context, logger *slog.Logger, exec *models.WorkflowExecution, step *models.WorkflowStep) (map[string]any, error) {
	input := step.Input.Resolve(exec.Context)
	maxAttempts := step.MaxAttempts()

	o.bus.EmitFrom(ctx, events.StepStartedEvent, o.stepPayload(exec, step), "orchestrator", "")

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !exec.Running() {
			return nil, errExecutionCancelled
		}

		attemptCtx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.step",
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.CapabilityKey, step.Capability),
			attribute.Int(otelhelper.AttemptKey, attempt),
		)

		result, err := o.invokeStep(attemptCtx, step, input)

		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()

		if err == nil {
			return result, nil
		}

		lastErr = err

		exec.RecordStepError(step.ID, err.Error())
		logger.Warn("Step attempt failed", "attempt", attempt, "error", err)

		payload := o.stepPayload(exec, step)
		payload["attempt"] = attempt
		payload["error"] = err.Error()
		o.bus.EmitFrom(ctx, events.StepFailedEvent, payload, "orchestrator", "")

		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(0)
		if step.RetryPolicy != nil {
			delay = step.RetryPolicy.Delay(attempt)
		}

		exec.IncrementAttempts(step.ID)

		retryPayload := o.stepPayload(exec, step)
		retryPayload["attempt"] = attempt + 1
		retryPayload["delay_ms"] = delay.Milliseconds()
		o.bus.EmitFrom(ctx, events.StepRetryingEvent, retryPayload, "orchestrator", "")

		if delay > 0 {
			timer := time.NewTimer(delay)

			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()

				return nil, lastErr
			}
		}
	}

	if step.RetryPolicy != nil {
		return nil, &models.RetryExhaustedError{StepID: step.ID, Attempts: maxAttempts, Err: lastErr}
	}

	return nil, lastErr
}

// invokeStep resolves the provider and races its Process call against the
// step timeout. The losing invocation is discarded, not aborted; the timed
// context lets cooperative providers stop early.
func (o *Orchestrator) invokeStep(ctx context.Context, step *models.WorkflowStep, input map[string]any) (map[string]any, error) {
	provider := o.registry.FindBestProvider(step.Capability, nil)
	if provider == nil {
		return nil, models.NewValidationError("no provider registered for capability %q", step.Capability)
	}

	timeout := step.Timeout.Std()

	if timeout <= 0 {
		output, err := provider.Process(ctx, input)
		if err != nil {
			return nil, &models.StepExecutionError{StepID: step.ID, Capability: step.Capability, Err: err}
		}

		return output, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output map[string]any
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		output, err := provider.Process(callCtx, input)
		done <- outcome{output: output, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		if result.err != nil {
			return nil, &models.StepExecutionError{StepID: step.ID, Capability: step.Capability, Err: result.err}
		}

		return result.output, nil
	case <-timer.C:
		return nil, &models.TimeoutError{Op: "step " + step.ID, Timeout: timeout}
	}
}

// applyErrorStrategy decides what happens after a step's retries are
// exhausted. It returns the next step id to advance to, or a terminal
// status.
func (o *Orchestrator) applyErrorStrategy(ctx context.Context, logger *slog.Logger, def *models.Workflow, exec *models.WorkflowExecution, step *models.WorkflowStep, stepErr error) (string, models.ExecutionStatus) {
	if def.ErrorHandling.NotifyOnError {
		payload := o.stepPayload(exec, step)
		payload["error"] = stepErr.Error()
		payload["strategy"] = string(def.ErrorHandling.Type)
		o.bus.EmitFrom(ctx, events.WorkflowExecutionErrorEvent, payload, "orchestrator", "")
	}

	switch def.ErrorHandling.Type {
	case models.ErrorHandlingSkip:
		logger.Warn("Skipping failed step", "error", stepErr)

		return step.FirstNextStage(), models.ExecutionStatusRunning
	case models.ErrorHandlingRetry:
		if step.OnError != nil {
			logger.Warn("Routing failed step through alternate path", "alternate", *step.OnError, "error", stepErr)
			exec.ResetAttempts(step.ID)

			return *step.OnError, models.ExecutionStatusRunning
		}

		// No alternate path to make progress through.
		logger.Error("Step failed with retry strategy but no alternate path", "error", stepErr)

		return "", models.ExecutionStatusFailed
	case models.ErrorHandlingFallback:
		logger.Warn("Jumping to fallback step", "fallback", def.ErrorHandling.FallbackStep, "error", stepErr)

		return def.ErrorHandling.FallbackStep, models.ExecutionStatusRunning
	case models.ErrorHandlingStop:
		logger.Error("Stopping execution after step failure", "error", stepErr)

		return "", models.ExecutionStatusFailed
	default:
		logger.Error("Stopping execution after step failure", "error", stepErr)

		return "", models.ExecutionStatusFailed
	}
}

// stepConditionsPass requires every condition to hold.
func stepConditionsPass(step *models.WorkflowStep, data map[string]any) (bool, error) {
	for _, condition := range step.Conditions {
		ok, err := condition.Evaluate(data)
		if err != nil {
			return false, fmt.Errorf("condition on %q: %w", condition.Field, err)
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (o *Orchestrator) updateProgress(exec *models.WorkflowExecution, allIDs []string, completedSet, skippedSet map[string]bool, currentID string) {
	completed := make([]string, 0, len(completedSet))
	skipped := make([]string, 0, len(skippedSet))
	remaining := make([]string, 0)

	for _, id := range allIDs {
		switch {
		case completedSet[id]:
			completed = append(completed, id)
		case skippedSet[id]:
			skipped = append(skipped, id)
		case id != currentID:
			remaining = append(remaining, id)
		}
	}

	stepIndex := 0

	for i, id := range allIDs {
		if id == currentID {
			stepIndex = i

			break
		}
	}

	exec.SetStages(models.StageProgress{
		Completed: completed,
		Current:   currentID,
		Skipped:   skipped,
		Remaining: remaining,
	}, stepIndex, float64(len(completed))/float64(len(allIDs)))
}

func (o *Orchestrator) stepPayload(exec *models.WorkflowExecution, step *models.WorkflowStep) map[string]any {
	return map[string]any{
		"execution_id": exec.ID,
		"workflow_id":  exec.WorkflowID,
		"step_id":      step.ID,
		"capability":   step.Capability,
	}
}
