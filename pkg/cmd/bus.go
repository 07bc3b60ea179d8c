// Package cmd provides common initialization for the maestro binaries.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/vitralabs/maestro/pkg/channels/gochannel"
	"github.com/vitralabs/maestro/pkg/channels/kafka"
	"github.com/vitralabs/maestro/pkg/eventbus"
)

func NewBus(logger *slog.Logger) *eventbus.Bus {
	return eventbus.NewBus(logger)
}

// NewForwarder attaches an event forwarder for the given channel kind, or
// returns nil for "none".
func NewForwarder(kind string, bus *eventbus.Bus, brokers string, logger *slog.Logger) (*eventbus.Forwarder, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch kind {
	case "", "none":
		return nil, nil
	case "gochannel":
		publisher, _, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create GoChannel pub/sub: %w", err)
		}

		return eventbus.NewForwarder(bus, publisher, logger), nil
	case "kafka":
		publisher, err := kafka.CreatePublisher(wmLogger, strings.Split(brokers, ","))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}

		return eventbus.NewForwarder(bus, publisher, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event channel %q", kind)
	}
}
