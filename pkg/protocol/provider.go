// Package protocol defines the contracts between the orchestration core and
// the capability providers it routes work to.
package protocol

import "context"

// Capability is a named operation a provider can perform. Input and Output
// are free-form shape descriptions for humans and tooling, not enforced
// schemas.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Input       string `json:"input,omitempty"`
	Output      string `json:"output,omitempty"`
}

// Provider is the required surface of a capability provider. Multiple
// providers may declare the same capability; the registry resolves
// many-to-one at lookup time.
type Provider interface {
	ID() string
	Name() string
	Version() string
	Capabilities() []Capability
	Process(ctx context.Context, input map[string]any) (map[string]any, error)
}

// HealthChecker is an optional hook; providers without it are assumed
// healthy.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Shutdowner is an optional hook invoked best-effort on unregister and
// registry shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// MetricsReporter is an optional hook exposing provider-internal counters.
type MetricsReporter interface {
	Metrics() map[string]any
}
