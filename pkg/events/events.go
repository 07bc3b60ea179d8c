// Package events defines the event envelope and the lifecycle event types
// broadcast by the orchestration core.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the watermill topic events are forwarded on for external
// listeners.
const Topic = "maestro.events"

const (
	EventTypeMetadataKey = "event_type"
	EventSourceKey       = "source"
)

// RequestIDKey is the payload key used to correlate request/response event
// pairs on the bus.
const RequestIDKey = "request_id"

const (
	// Workflow execution lifecycle.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	WorkflowExecutionCancelledEvent EventType = "workflow.execution.cancelled"
	WorkflowExecutionErrorEvent     EventType = "workflow.execution.error"

	// Step lifecycle.
	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"
	StepRetryingEvent  EventType = "step.retrying"
	StepSkippedEvent   EventType = "step.skipped"

	// Registry lifecycle.
	ProviderRegisteredEvent   EventType = "provider.registered"
	ProviderUnregisteredEvent EventType = "provider.unregistered"
)

// Event is an immutable, timestamped, typed message. Source and Target are
// optional routing hints for subscribers that filter by origin.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
	Target    string         `json:"target,omitempty"`
}

func New(eventType EventType, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
