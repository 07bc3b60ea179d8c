// Package workflow owns workflow definitions: an in-memory repository with
// struct validation and a JSON document parser with schema validation.
package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vitralabs/maestro/pkg/models"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrWorkflowExists   = errors.New("workflow already registered")
)

// Repository stores workflow definitions. Definitions are immutable once
// registered: re-registering an id is rejected rather than replaced.
type Repository struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	order     []string
}

func NewRepository(logger *slog.Logger) *Repository {
	return &Repository{
		logger:    logger.With("module", "workflow_repository"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		workflows: make(map[string]*models.Workflow),
	}
}

// Register validates and stores a definition.
func (r *Repository) Register(workflow *models.Workflow) error {
	if err := r.validate.Struct(workflow); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	if err := validateEdges(workflow); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[workflow.ID]; exists {
		return fmt.Errorf("%w: %s", ErrWorkflowExists, workflow.ID)
	}

	r.workflows[workflow.ID] = workflow
	r.order = append(r.order, workflow.ID)

	r.logger.Info("Registered workflow", "workflow_id", workflow.ID, "steps", len(workflow.Steps))

	return nil
}

func (r *Repository) Get(id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	return workflow, nil
}

// All returns every definition in registration order.
func (r *Repository) All() []*models.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.Workflow, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.workflows[id])
	}

	return all
}

func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.workflows)
}

// validateEdges checks that step ids are unique and every outgoing edge,
// override and fallback target names a step that exists.
func validateEdges(workflow *models.Workflow) error {
	ids := make(map[string]bool, len(workflow.Steps))

	for _, step := range workflow.Steps {
		if ids[step.ID] {
			return fmt.Errorf("duplicate step id %q in workflow %s", step.ID, workflow.ID)
		}

		ids[step.ID] = true
	}

	check := func(stepID, kind, target string) error {
		if target != "" && !ids[target] {
			return fmt.Errorf("step %q %s references unknown step %q", stepID, kind, target)
		}

		return nil
	}

	for _, step := range workflow.Steps {
		for _, next := range step.NextStages {
			if err := check(step.ID, "next stage", next); err != nil {
				return err
			}
		}

		if step.OnSuccess != nil {
			if err := check(step.ID, "on_success", *step.OnSuccess); err != nil {
				return err
			}
		}

		if step.OnError != nil {
			if err := check(step.ID, "on_error", *step.OnError); err != nil {
				return err
			}
		}
	}

	if workflow.ErrorHandling.Type == models.ErrorHandlingFallback {
		if workflow.ErrorHandling.FallbackStep == "" {
			return fmt.Errorf("workflow %s uses fallback error handling without a fallback step", workflow.ID)
		}

		if !ids[workflow.ErrorHandling.FallbackStep] {
			return fmt.Errorf("workflow %s fallback step %q does not exist", workflow.ID, workflow.ErrorHandling.FallbackStep)
		}
	}

	return nil
}
