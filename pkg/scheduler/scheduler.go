// Package scheduler triggers workflow executions on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/vitralabs/maestro/pkg/orchestrator"
)

// Scheduler owns a cron runner and maps schedule ids to cron entries.
type Scheduler struct {
	logger       *slog.Logger
	orchestrator *orchestrator.Orchestrator
	cron         *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New(orch *orchestrator.Orchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:       logger.With("module", "scheduler"),
		orchestrator: orch,
		cron:         cron.New(),
		entries:      make(map[string]cron.EntryID),
	}
}

// Schedule registers a cron expression that executes the workflow with the
// given input on every tick. It returns a schedule id for Unschedule.
func (s *Scheduler) Schedule(cronExpr, workflowID string, input map[string]any) (string, error) {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	scheduleID := "sched-" + uuid.New().String()[:8]

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.logger.Info("Triggering scheduled workflow", "schedule_id", scheduleID, "workflow_id", workflowID)

		execution, err := s.orchestrator.ExecuteWorkflow(context.Background(), workflowID, input)
		if err != nil {
			s.logger.Error("Scheduled workflow failed to start", "schedule_id", scheduleID, "workflow_id", workflowID, "error", err)

			return
		}

		s.logger.Info("Scheduled workflow finished",
			"schedule_id", scheduleID, "execution_id", execution.ID, "status", execution.CurrentStatus())
	})
	if err != nil {
		return "", fmt.Errorf("failed to schedule workflow %s: %w", workflowID, err)
	}

	s.mu.Lock()
	s.entries[scheduleID] = entryID
	s.mu.Unlock()

	s.logger.Info("Scheduled workflow", "schedule_id", scheduleID, "workflow_id", workflowID, "cron", cronExpr)

	return scheduleID, nil
}

// Unschedule removes a schedule; idempotent.
func (s *Scheduler) Unschedule(scheduleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[scheduleID]
	if !ok {
		return false
	}

	s.cron.Remove(entryID)
	delete(s.entries, scheduleID)

	return true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runner; the returned context is done once in-flight
// jobs complete.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
