package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitralabs/maestro/pkg/channels/gochannel"
	"github.com/vitralabs/maestro/pkg/events"
)

func TestForwarder_RepublishesBusEvents(t *testing.T) {
	bus := NewBus(testLogger())

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	messages, err := subscriber.Subscribe(context.Background(), events.Topic)
	require.NoError(t, err)

	forwarder := NewForwarder(bus, publisher, testLogger())
	forwarder.Start()

	defer func() {
		require.NoError(t, forwarder.Close())
	}()

	emitted := bus.EmitFrom(context.Background(), events.StepCompletedEvent, map[string]any{"step_id": "s1"}, "orchestrator", "")

	select {
	case msg := <-messages:
		msg.Ack()

		assert.Equal(t, string(events.StepCompletedEvent), msg.Metadata.Get(events.EventTypeMetadataKey))
		assert.Equal(t, "orchestrator", msg.Metadata.Get(events.EventSourceKey))

		var decoded events.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, emitted.ID, decoded.ID)
		assert.Equal(t, "s1", decoded.Data["step_id"])
	case <-time.After(time.Second):
		t.Fatal("no message forwarded within deadline")
	}
}

func TestForwarder_CloseDetachesFromBus(t *testing.T) {
	bus := NewBus(testLogger())

	publisher, _, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	forwarder := NewForwarder(bus, publisher, testLogger())
	forwarder.Start()

	require.Equal(t, 1, bus.SubscriptionCount(events.StepStartedEvent))

	require.NoError(t, forwarder.Close())

	assert.Equal(t, 0, bus.SubscriptionCount(events.StepStartedEvent))
}
