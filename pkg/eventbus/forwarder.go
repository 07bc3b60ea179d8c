package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/vitralabs/maestro/pkg/events"
)

// Forwarder republishes every bus event as a JSON message on a watermill
// publisher so external processes (GoChannel in tests, Kafka in deployments)
// can observe the lifecycle stream. It is broadcast-only; nothing flows back
// into the bus.
type Forwarder struct {
	bus       *Bus
	publisher message.Publisher
	logger    *slog.Logger
	subID     string
}

func NewForwarder(bus *Bus, publisher message.Publisher, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		bus:       bus,
		publisher: publisher,
		logger:    logger.With("module", "event_forwarder"),
	}
}

// Start subscribes the forwarder to all bus events.
func (f *Forwarder) Start() {
	f.subID = f.bus.Subscribe(AllEvents, func(_ context.Context, event events.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
		msg.Metadata.Set(events.EventTypeMetadataKey, string(event.Type))

		if event.Source != "" {
			msg.Metadata.Set(events.EventSourceKey, event.Source)
		}

		return f.publisher.Publish(events.Topic, msg)
	})
}

// Close detaches from the bus and closes the underlying publisher.
func (f *Forwarder) Close() error {
	if f.subID != "" {
		f.bus.Unsubscribe(f.subID)
		f.subID = ""
	}

	return f.publisher.Close()
}
