// Package registry implements the capability directory: provider
// registration, capability-based lookup, parallel health probing and best
// provider selection.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vitralabs/maestro/pkg/eventbus"
	"github.com/vitralabs/maestro/pkg/events"
	"github.com/vitralabs/maestro/pkg/protocol"
)

// HealthStatus is the outcome of one provider's health probe.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SelectionCriteria narrows FindBestProvider when several providers declare
// the same capability.
type SelectionCriteria struct {
	PreferredVersion  string
	PreferredProvider string
}

// Registry owns provider records. Directory mutations happen only inside
// single synchronous critical sections; probes and shutdown hooks run
// outside the lock.
type Registry struct {
	logger *slog.Logger
	bus    *eventbus.Bus

	mu        sync.RWMutex
	providers map[string]protocol.Provider
	order     []string
}

type Option func(*Registry)

// WithBus makes the registry announce provider registration and removal on
// the event bus.
func WithBus(bus *eventbus.Bus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	reg := &Registry{
		logger:    logger.With("module", "registry"),
		providers: make(map[string]protocol.Provider),
	}

	for _, opt := range opts {
		opt(reg)
	}

	return reg
}

// Register inserts or replaces a provider by id. Replacement is allowed but
// logged, since it usually means two components claim the same identity.
func (r *Registry) Register(provider protocol.Provider) {
	id := provider.ID()

	r.mu.Lock()

	if _, exists := r.providers[id]; exists {
		r.logger.Warn("Replacing already registered provider", "provider_id", id, "name", provider.Name())
	} else {
		r.order = append(r.order, id)
	}

	r.providers[id] = provider
	r.mu.Unlock()

	r.announce(events.ProviderRegisteredEvent, provider)
}

func (r *Registry) announce(eventType events.EventType, provider protocol.Provider) {
	if r.bus == nil {
		return
	}

	names := make([]string, 0, len(provider.Capabilities()))
	for _, capability := range provider.Capabilities() {
		names = append(names, capability.Name)
	}

	r.bus.EmitFrom(context.Background(), eventType, map[string]any{
		"provider_id":  provider.ID(),
		"name":         provider.Name(),
		"version":      provider.Version(),
		"capabilities": names,
	}, "registry", "")
}

// Unregister removes a provider and fires its shutdown hook best-effort.
func (r *Registry) Unregister(ctx context.Context, id string) bool {
	r.mu.Lock()

	provider, exists := r.providers[id]
	if exists {
		delete(r.providers, id)

		for i, existing := range r.order {
			if existing == id {
				r.order = append(r.order[:i], r.order[i+1:]...)

				break
			}
		}
	}
	r.mu.Unlock()

	if !exists {
		return false
	}

	r.shutdownProvider(ctx, provider)
	r.announce(events.ProviderUnregisteredEvent, provider)

	return true
}

func (r *Registry) Get(id string) (protocol.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[id]

	return provider, ok
}

// GetAll returns every provider in registration order.
func (r *Registry) GetAll() []protocol.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]protocol.Provider, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.providers[id])
	}

	return all
}

// GetByCapability returns the providers declaring the capability, in
// registration order so selection stays deterministic.
func (r *Registry) GetByCapability(name string) []protocol.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matching := make([]protocol.Provider, 0)

	for _, id := range r.order {
		provider := r.providers[id]
		for _, capability := range provider.Capabilities() {
			if capability.Name == name {
				matching = append(matching, provider)

				break
			}
		}
	}

	return matching
}

// Capabilities returns the deduplicated union of declared capability names,
// in first-seen registration order.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	names := make([]string, 0)

	for _, id := range r.order {
		for _, capability := range r.providers[id].Capabilities() {
			if !seen[capability.Name] {
				seen[capability.Name] = true

				names = append(names, capability.Name)
			}
		}
	}

	return names
}

// HealthCheck probes every provider in parallel. Providers without a health
// hook are assumed healthy; a probe error or panic marks that provider
// unhealthy without affecting the others.
func (r *Registry) HealthCheck(ctx context.Context) map[string]HealthStatus {
	providers := r.GetAll()

	results := make(map[string]HealthStatus, len(providers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, provider := range providers {
		wg.Add(1)

		go func(p protocol.Provider) {
			defer wg.Done()

			status := probe(ctx, p)

			mu.Lock()
			results[p.ID()] = status
			mu.Unlock()
		}(provider)
	}

	wg.Wait()

	return results
}

func probe(ctx context.Context, provider protocol.Provider) (status HealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = HealthStatus{Healthy: false, Error: fmt.Sprintf("health check panicked: %v", r)}
		}
	}()

	checker, ok := provider.(protocol.HealthChecker)
	if !ok {
		return HealthStatus{Healthy: true}
	}

	if err := checker.HealthCheck(ctx); err != nil {
		return HealthStatus{Healthy: false, Error: err.Error()}
	}

	return HealthStatus{Healthy: true}
}

// Metrics collects the counters of every provider exposing the metrics hook,
// keyed by provider id.
func (r *Registry) Metrics() map[string]map[string]any {
	results := make(map[string]map[string]any)

	for _, provider := range r.GetAll() {
		reporter, ok := provider.(protocol.MetricsReporter)
		if !ok {
			continue
		}

		results[provider.ID()] = reporter.Metrics()
	}

	return results
}

// FindBestProvider resolves a capability to a single provider: nil when
// nobody declares it, the sole match when there is one, otherwise the
// criteria pick among candidates before falling back to the first match.
// Given the same registration order and criteria the result is
// deterministic.
func (r *Registry) FindBestProvider(capability string, criteria *SelectionCriteria) protocol.Provider {
	candidates := r.GetByCapability(capability)

	if len(candidates) == 0 {
		return nil
	}

	if len(candidates) == 1 || criteria == nil {
		return candidates[0]
	}

	if criteria.PreferredProvider != "" {
		for _, candidate := range candidates {
			if candidate.ID() == criteria.PreferredProvider {
				return candidate
			}
		}
	}

	if criteria.PreferredVersion != "" {
		for _, candidate := range candidates {
			if candidate.Version() == criteria.PreferredVersion {
				return candidate
			}
		}
	}

	return candidates[0]
}

// ShutdownAll fires every provider's shutdown hook in parallel, isolating
// failures, then clears the directory.
func (r *Registry) ShutdownAll(ctx context.Context) {
	providers := r.GetAll()

	var wg sync.WaitGroup

	for _, provider := range providers {
		wg.Add(1)

		go func(p protocol.Provider) {
			defer wg.Done()
			r.shutdownProvider(ctx, p)
		}(provider)
	}

	wg.Wait()

	r.mu.Lock()
	r.providers = make(map[string]protocol.Provider)
	r.order = nil
	r.mu.Unlock()
}

func (r *Registry) shutdownProvider(ctx context.Context, provider protocol.Provider) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Provider shutdown panicked", "provider_id", provider.ID(), "panic", fmt.Sprintf("%v", rec))
		}
	}()

	shutdowner, ok := provider.(protocol.Shutdowner)
	if !ok {
		return
	}

	if err := shutdowner.Shutdown(ctx); err != nil {
		r.logger.Error("Provider shutdown failed", "provider_id", provider.ID(), "error", err)
	}
}
