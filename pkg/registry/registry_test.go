package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitralabs/maestro/pkg/eventbus"
	"github.com/vitralabs/maestro/pkg/events"
	"github.com/vitralabs/maestro/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	id           string
	version      string
	capabilities []string
	metrics      map[string]any

	healthErr   error
	panicHealth bool

	shutdownCalled bool
	shutdownErr    error
}

func (p *fakeProvider) ID() string      { return p.id }
func (p *fakeProvider) Name() string    { return "Fake " + p.id }
func (p *fakeProvider) Version() string { return p.version }

func (p *fakeProvider) Capabilities() []protocol.Capability {
	caps := make([]protocol.Capability, 0, len(p.capabilities))
	for _, name := range p.capabilities {
		caps = append(caps, protocol.Capability{Name: name})
	}

	return caps
}

func (p *fakeProvider) Process(_ context.Context, input map[string]any) (map[string]any, error) {
	return map[string]any{"echo": input, "provider": p.id}, nil
}

func (p *fakeProvider) HealthCheck(_ context.Context) error {
	if p.panicHealth {
		panic("health check bug")
	}

	return p.healthErr
}

func (p *fakeProvider) Shutdown(_ context.Context) error {
	p.shutdownCalled = true

	return p.shutdownErr
}

func (p *fakeProvider) Metrics() map[string]any {
	return p.metrics
}

// bareProvider implements only the required Provider surface, none of the
// optional hooks.
type bareProvider struct {
	id         string
	capability string
}

func (p *bareProvider) ID() string      { return p.id }
func (p *bareProvider) Name() string    { return "Bare " + p.id }
func (p *bareProvider) Version() string { return "0.0.1" }

func (p *bareProvider) Capabilities() []protocol.Capability {
	return []protocol.Capability{{Name: p.capability}}
}

func (p *bareProvider) Process(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())

	provider := &fakeProvider{id: "p1", version: "1.0.0", capabilities: []string{"translate"}}
	reg.Register(provider)

	got, ok := reg.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterReplacesSameID(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(&fakeProvider{id: "p1", version: "1.0.0"})
	reg.Register(&fakeProvider{id: "p1", version: "2.0.0"})

	got, ok := reg.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", got.Version())
	assert.Len(t, reg.GetAll(), 1)
}

func TestRegistry_GetByCapabilityKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(&fakeProvider{id: "p1", capabilities: []string{"translate", "summarize"}})
	reg.Register(&fakeProvider{id: "p2", capabilities: []string{"translate"}})
	reg.Register(&fakeProvider{id: "p3", capabilities: []string{"summarize"}})

	translators := reg.GetByCapability("translate")
	require.Len(t, translators, 2)
	assert.Equal(t, "p1", translators[0].ID())
	assert.Equal(t, "p2", translators[1].ID())

	assert.Empty(t, reg.GetByCapability("nonexistent"))
}

func TestRegistry_Capabilities(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(&fakeProvider{id: "p1", capabilities: []string{"translate", "summarize"}})
	reg.Register(&fakeProvider{id: "p2", capabilities: []string{"translate", "classify"}})

	assert.Equal(t, []string{"translate", "summarize", "classify"}, reg.Capabilities())
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry(testLogger())

	provider := &fakeProvider{id: "p1", capabilities: []string{"translate"}}
	reg.Register(provider)

	assert.True(t, reg.Unregister(context.Background(), "p1"))
	assert.True(t, provider.shutdownCalled, "unregister fires the shutdown hook")
	assert.False(t, reg.Unregister(context.Background(), "p1"))
	assert.Empty(t, reg.GetByCapability("translate"))
}

func TestRegistry_HealthCheck(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(&fakeProvider{id: "healthy"})
	reg.Register(&fakeProvider{id: "unhealthy", healthErr: errors.New("disk full")})
	reg.Register(&fakeProvider{id: "panicking", panicHealth: true})
	reg.Register(&bareProvider{id: "no-hook", capability: "translate"})

	results := reg.HealthCheck(context.Background())
	require.Len(t, results, 4)

	assert.True(t, results["healthy"].Healthy)
	assert.False(t, results["unhealthy"].Healthy)
	assert.Equal(t, "disk full", results["unhealthy"].Error)
	assert.False(t, results["panicking"].Healthy)
	assert.Contains(t, results["panicking"].Error, "panicked")
	assert.True(t, results["no-hook"].Healthy, "providers without a hook are assumed healthy")
}

func TestRegistry_FindBestProvider(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(&fakeProvider{id: "p1", version: "1.0.0", capabilities: []string{"translate"}})
	reg.Register(&fakeProvider{id: "p2", version: "2.0.0", capabilities: []string{"translate"}})
	reg.Register(&fakeProvider{id: "p3", version: "2.0.0", capabilities: []string{"translate"}})

	assert.Nil(t, reg.FindBestProvider("nonexistent", nil))

	best := reg.FindBestProvider("translate", nil)
	require.NotNil(t, best)
	assert.Equal(t, "p1", best.ID(), "without criteria the first registered wins")

	best = reg.FindBestProvider("translate", &SelectionCriteria{PreferredProvider: "p3"})
	require.NotNil(t, best)
	assert.Equal(t, "p3", best.ID())

	best = reg.FindBestProvider("translate", &SelectionCriteria{PreferredVersion: "2.0.0"})
	require.NotNil(t, best)
	assert.Equal(t, "p2", best.ID(), "first candidate with the preferred version wins")

	best = reg.FindBestProvider("translate", &SelectionCriteria{PreferredProvider: "missing", PreferredVersion: "9.9.9"})
	require.NotNil(t, best)
	assert.Equal(t, "p1", best.ID(), "unsatisfiable criteria fall back to the first match")
}

func TestRegistry_AnnouncesLifecycleOnBus(t *testing.T) {
	bus := eventbus.NewBus(testLogger())
	reg := NewRegistry(testLogger(), WithBus(bus))

	reg.Register(&fakeProvider{id: "p1", version: "1.0.0", capabilities: []string{"translate"}})

	registered := bus.GetEventHistory(events.ProviderRegisteredEvent, 0)
	require.Len(t, registered, 1)
	assert.Equal(t, "p1", registered[0].Data["provider_id"])
	assert.Equal(t, []string{"translate"}, registered[0].Data["capabilities"])
	assert.Equal(t, "registry", registered[0].Source)

	require.True(t, reg.Unregister(context.Background(), "p1"))

	unregistered := bus.GetEventHistory(events.ProviderUnregisteredEvent, 0)
	require.Len(t, unregistered, 1)
	assert.Equal(t, "p1", unregistered[0].Data["provider_id"])
}

func TestRegistry_Metrics(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(&fakeProvider{id: "p1", metrics: map[string]any{"requests": int64(7)}})
	reg.Register(&bareProvider{id: "p2", capability: "translate"})

	metrics := reg.Metrics()
	require.Len(t, metrics, 1, "providers without the hook are omitted")
	assert.Equal(t, int64(7), metrics["p1"]["requests"])
}

func TestRegistry_ShutdownAll(t *testing.T) {
	reg := NewRegistry(testLogger())

	p1 := &fakeProvider{id: "p1"}
	p2 := &fakeProvider{id: "p2", shutdownErr: errors.New("flush failed")}
	reg.Register(p1)
	reg.Register(p2)

	reg.ShutdownAll(context.Background())

	assert.True(t, p1.shutdownCalled)
	assert.True(t, p2.shutdownCalled, "one failing shutdown does not stop the others")
	assert.Empty(t, reg.GetAll())
}
