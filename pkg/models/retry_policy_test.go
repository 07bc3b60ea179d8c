package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	base := Duration(100 * time.Millisecond)

	tests := []struct {
		name     string
		policy   RetryPolicy
		attempt  int
		expected time.Duration
	}{
		{
			name:     "fixed stays at base",
			policy:   RetryPolicy{MaxAttempts: 5, Backoff: BackoffFixed, BaseDelay: base},
			attempt:  3,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "linear scales with attempt",
			policy:   RetryPolicy{MaxAttempts: 5, Backoff: BackoffLinear, BaseDelay: base},
			attempt:  3,
			expected: 300 * time.Millisecond,
		},
		{
			name:     "exponential first attempt is base",
			policy:   RetryPolicy{MaxAttempts: 5, Backoff: BackoffExponential, BaseDelay: base},
			attempt:  1,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "exponential doubles per attempt",
			policy:   RetryPolicy{MaxAttempts: 5, Backoff: BackoffExponential, BaseDelay: base},
			attempt:  4,
			expected: 800 * time.Millisecond,
		},
		{
			name: "max delay clamps",
			policy: RetryPolicy{
				MaxAttempts: 10,
				Backoff:     BackoffExponential,
				BaseDelay:   base,
				MaxDelay:    Duration(250 * time.Millisecond),
			},
			attempt:  5,
			expected: 250 * time.Millisecond,
		},
		{
			name:     "unset strategy behaves as fixed",
			policy:   RetryPolicy{MaxAttempts: 3, BaseDelay: base},
			attempt:  2,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "attempt below one normalizes",
			policy:   RetryPolicy{MaxAttempts: 3, Backoff: BackoffLinear, BaseDelay: base},
			attempt:  0,
			expected: 100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.Delay(tt.attempt))
		})
	}
}
