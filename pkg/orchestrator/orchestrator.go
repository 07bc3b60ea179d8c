// Package orchestrator owns workflow executions: it drives the step state
// machine, applies retry/backoff and timeout policy, routes capability
// requests through the registry and emits lifecycle events on the bus.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitralabs/maestro/pkg/eventbus"
	"github.com/vitralabs/maestro/pkg/events"
	"github.com/vitralabs/maestro/pkg/models"
	"github.com/vitralabs/maestro/pkg/otelhelper"
	"github.com/vitralabs/maestro/pkg/registry"
	"github.com/vitralabs/maestro/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const DefaultCompletedHistory = 100

// RouteResult is the outcome of an ad-hoc capability call. Expected domain
// failures are reported through Success/Error rather than a returned error.
type RouteResult struct {
	Success    bool           `json:"success"`
	Output     map[string]any `json:"output"`
	Error      string         `json:"error,omitempty"`
	ProviderID string         `json:"provider_id,omitempty"`
}

// Orchestrator coordinates many concurrent executions. The active set and
// the bounded completed ring are mutated only at the single points the state
// machine names: admission and the terminal transition.
type Orchestrator struct {
	logger      *slog.Logger
	definitions *workflow.Repository
	registry    *registry.Registry
	bus         *eventbus.Bus
	tracer      trace.Tracer

	mu             sync.Mutex
	active         map[string]*models.WorkflowExecution
	completed      []*models.WorkflowExecution
	completedCap   int
	totalCompleted int64
	totalFailed    int64
	totalCancelled int64
	totalDuration  time.Duration
}

type Option func(*Orchestrator)

// WithCompletedHistory bounds the completed-execution ring.
func WithCompletedHistory(capacity int) Option {
	return func(o *Orchestrator) {
		if capacity > 0 {
			o.completedCap = capacity
		}
	}
}

// WithTracer enables tracing of executions and step attempts.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func New(definitions *workflow.Repository, reg *registry.Registry, bus *eventbus.Bus, logger *slog.Logger, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		logger:       logger.With("module", "orchestrator"),
		definitions:  definitions,
		registry:     reg,
		bus:          bus,
		tracer:       noop.NewTracerProvider().Tracer("maestro"),
		active:       make(map[string]*models.WorkflowExecution),
		completedCap: DefaultCompletedHistory,
	}

	for _, opt := range opts {
		opt(orch)
	}

	return orch
}

// ExecuteWorkflow runs the named workflow to a terminal state and returns
// the finished execution. Unknown workflow ids fail fast with a
// ValidationError and no execution object is created. Domain failures
// during execution surface through the returned execution's status and
// error log, not through the error return.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any) (*models.WorkflowExecution, error) {
	def, err := o.definitions.Get(workflowID)
	if err != nil {
		return nil, models.NewValidationError("unknown workflow %q", workflowID)
	}

	exec := models.NewWorkflowExecution(workflowID, input)

	o.mu.Lock()
	o.active[exec.ID] = exec
	o.mu.Unlock()

	exec.Start()

	logger := o.logger.With("workflow_id", workflowID, "execution_id", exec.ID)
	logger.Info("Starting workflow execution")

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ExecutionIDKey, exec.ID),
	)
	defer span.End()

	o.bus.EmitFrom(ctx, events.WorkflowExecutionStartedEvent, map[string]any{
		"execution_id": exec.ID,
		"workflow_id":  workflowID,
	}, "orchestrator", "")

	runCtx := ctx

	if overall := def.Timeout.Std(); overall > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, overall)
		defer cancel()
	}

	status := o.runSteps(runCtx, logger, def, exec)

	o.finalize(ctx, logger, exec, status)

	return exec, nil
}

// RouteRequest bypasses the step engine: it resolves one provider and
// invokes it once. Unknown capabilities fail fast with a ValidationError.
func (o *Orchestrator) RouteRequest(ctx context.Context, capability string, input map[string]any) (*RouteResult, error) {
	provider := o.registry.FindBestProvider(capability, nil)
	if provider == nil {
		return nil, models.NewValidationError("no provider registered for capability %q", capability)
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "capability.route",
		attribute.String(otelhelper.CapabilityKey, capability),
		attribute.String(otelhelper.ProviderIDKey, provider.ID()),
	)
	defer span.End()

	output, err := provider.Process(ctx, input)
	if err != nil {
		otelhelper.SetError(span, err)
		o.logger.Warn("Capability request failed", "capability", capability, "provider_id", provider.ID(), "error", err)

		return &RouteResult{
			Success:    false,
			Output:     map[string]any{},
			Error:      err.Error(),
			ProviderID: provider.ID(),
		}, nil
	}

	return &RouteResult{
		Success:    true,
		Output:     output,
		ProviderID: provider.ID(),
	}, nil
}

// CancelExecution marks a running execution cancelled and prevents further
// step scheduling. It is cooperative: an invocation already in flight is not
// aborted, its eventual result is discarded.
func (o *Orchestrator) CancelExecution(id string) bool {
	o.mu.Lock()
	exec, ok := o.active[id]
	o.mu.Unlock()

	if !ok {
		return false
	}

	cancelled := exec.Cancel()
	if cancelled {
		o.logger.Info("Execution cancelled", "execution_id", id, "workflow_id", exec.WorkflowID)
	}

	return cancelled
}

// GetActiveExecutions returns point-in-time snapshots of the running
// executions. The engine keeps mutating the originals, so callers never
// receive them directly.
func (o *Orchestrator) GetActiveExecutions() []*models.WorkflowExecution {
	o.mu.Lock()
	defer o.mu.Unlock()

	active := make([]*models.WorkflowExecution, 0, len(o.active))
	for _, exec := range o.active {
		active = append(active, exec.Snapshot())
	}

	return active
}

func (o *Orchestrator) GetCompletedExecutions() []*models.WorkflowExecution {
	o.mu.Lock()
	defer o.mu.Unlock()

	completed := make([]*models.WorkflowExecution, len(o.completed))
	copy(completed, o.completed)

	return completed
}

// finalize performs the single terminal transition: the execution leaves the
// active set and enters the bounded completed ring exactly once.
func (o *Orchestrator) finalize(ctx context.Context, logger *slog.Logger, exec *models.WorkflowExecution, status models.ExecutionStatus) {
	// Finish is a no-op when cancellation already made the execution
	// terminal; the cancelled status wins.
	exec.Finish(status)

	final := exec.CurrentStatus()

	o.mu.Lock()
	delete(o.active, exec.ID)

	o.completed = append(o.completed, exec)
	if len(o.completed) > o.completedCap {
		o.completed = o.completed[len(o.completed)-o.completedCap:]
	}

	switch final {
	case models.ExecutionStatusCompleted:
		o.totalCompleted++
		o.totalDuration += exec.Duration
	case models.ExecutionStatusFailed:
		o.totalFailed++
		o.totalDuration += exec.Duration
	case models.ExecutionStatusCancelled:
		o.totalCancelled++
		o.totalDuration += exec.Duration
	}
	o.mu.Unlock()

	eventType := events.WorkflowExecutionCompletedEvent

	switch final {
	case models.ExecutionStatusFailed:
		eventType = events.WorkflowExecutionFailedEvent
	case models.ExecutionStatusCancelled:
		eventType = events.WorkflowExecutionCancelledEvent
	}

	o.bus.EmitFrom(ctx, eventType, map[string]any{
		"execution_id": exec.ID,
		"workflow_id":  exec.WorkflowID,
		"status":       string(final),
		"duration_ms":  exec.Duration.Milliseconds(),
	}, "orchestrator", "")

	logger.Info("Workflow execution finished", "status", final, "duration", exec.Duration)
}
