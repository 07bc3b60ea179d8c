package cmd

import (
	"log/slog"

	"github.com/vitralabs/maestro/internal/providers/certificate"
	"github.com/vitralabs/maestro/internal/providers/document"
	"github.com/vitralabs/maestro/internal/providers/ingredients"
	"github.com/vitralabs/maestro/pkg/eventbus"
	"github.com/vitralabs/maestro/pkg/registry"
)

// NewRegistry builds the provider registry with the native providers
// registered. Registrations are announced on the bus.
func NewRegistry(logger *slog.Logger, bus *eventbus.Bus) *registry.Registry {
	reg := registry.NewRegistry(logger, registry.WithBus(bus))

	registerNativeProviders(reg)

	return reg
}

func registerNativeProviders(reg *registry.Registry) {
	reg.Register(ingredients.New())
	reg.Register(document.New())
	reg.Register(certificate.New())
}
