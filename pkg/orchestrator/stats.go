package orchestrator

import "time"

// OrchestrationStats aggregates in-memory execution counters; no external
// calls are made.
type OrchestrationStats struct {
	ActiveExecutions    int           `json:"active_executions"`
	CompletedExecutions int64         `json:"completed_executions"`
	FailedExecutions    int64         `json:"failed_executions"`
	CancelledExecutions int64         `json:"cancelled_executions"`
	TotalWorkflows      int           `json:"total_workflows"`
	AverageDuration     time.Duration `json:"average_duration"`
	SuccessRate         float64       `json:"success_rate"`
}

// GetOrchestrationStats derives counts, average duration and success rate
// from the in-memory sets. SuccessRate is completed / (completed + failed),
// defined as 0 when both counts are zero.
func (o *Orchestrator) GetOrchestrationStats() OrchestrationStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := OrchestrationStats{
		ActiveExecutions:    len(o.active),
		CompletedExecutions: o.totalCompleted,
		FailedExecutions:    o.totalFailed,
		CancelledExecutions: o.totalCancelled,
		TotalWorkflows:      o.definitions.Count(),
	}

	terminal := o.totalCompleted + o.totalFailed + o.totalCancelled
	if terminal > 0 {
		stats.AverageDuration = o.totalDuration / time.Duration(terminal)
	}

	if attempts := o.totalCompleted + o.totalFailed; attempts > 0 {
		stats.SuccessRate = float64(o.totalCompleted) / float64(attempts)
	}

	return stats
}
