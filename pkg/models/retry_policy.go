package models

import "time"

type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy governs reattempts of a failed step. MaxAttempts counts the
// first attempt, so MaxAttempts=3 means at most two retries.
type RetryPolicy struct {
	MaxAttempts int             `json:"max_attempts"        validate:"required,min=1"`
	Backoff     BackoffStrategy `json:"backoff,omitempty"   validate:"omitempty,oneof=fixed linear exponential"`
	BaseDelay   Duration        `json:"base_delay,omitempty"`
	MaxDelay    Duration        `json:"max_delay,omitempty"`
}

// Delay computes the pause before retrying after the given attempt
// (1-based). It is a pure function so backoff behavior is testable without
// real timers.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := p.BaseDelay.Std()

	var delay time.Duration

	switch p.Backoff {
	case BackoffLinear:
		delay = time.Duration(attempt) * base
	case BackoffExponential:
		delay = base * time.Duration(1<<(attempt-1))
	case BackoffFixed:
		delay = base
	default:
		delay = base
	}

	if maxDelay := p.MaxDelay.Std(); maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
