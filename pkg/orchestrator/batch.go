package orchestrator

import (
	"context"
	"sync"
)

// BatchRequest is one item of a bulk capability fan-out.
type BatchRequest struct {
	Capability string         `json:"capability"`
	Input      map[string]any `json:"input"`
}

// BatchItemResult carries the per-item outcome. Failures are collected per
// item rather than aborting the whole batch, so callers get partial success.
type BatchItemResult struct {
	Capability string         `json:"capability"`
	Success    bool           `json:"success"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ExecuteBatch runs all requests concurrently and waits for every item to
// finish. Results are returned in request order.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, requests []BatchRequest) []BatchItemResult {
	results := make([]BatchItemResult, len(requests))

	var wg sync.WaitGroup

	for i, request := range requests {
		wg.Add(1)

		go func(index int, req BatchRequest) {
			defer wg.Done()

			routed, err := o.RouteRequest(ctx, req.Capability, req.Input)
			if err != nil {
				results[index] = BatchItemResult{
					Capability: req.Capability,
					Success:    false,
					Error:      err.Error(),
				}

				return
			}

			results[index] = BatchItemResult{
				Capability: req.Capability,
				Success:    routed.Success,
				Output:     routed.Output,
				Error:      routed.Error,
			}
		}(i, request)
	}

	wg.Wait()

	return results
}
