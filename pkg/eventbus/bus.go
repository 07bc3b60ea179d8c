// Package eventbus provides the in-process publish/subscribe router used by
// the orchestration core: typed subscriptions, bounded event history, a
// wait-for-event primitive and request/response correlation built on top of
// emit/subscribe.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitralabs/maestro/pkg/events"
	"github.com/vitralabs/maestro/pkg/models"
)

// AllEvents subscribes a handler to every event type.
const AllEvents events.EventType = "*"

const DefaultHistoryCapacity = 1000

var ErrInvalidTimeout = errors.New("timeout must be greater than zero")

// Handler processes one delivered event. Returned errors are logged and
// never propagated to the emitter.
type Handler func(ctx context.Context, event events.Event) error

// FilterFunc narrows WaitForEvent matches beyond the event type.
type FilterFunc func(event events.Event) bool

type subscription struct {
	id        string
	eventType events.EventType
	source    string
	handler   Handler
}

func (s *subscription) matches(event events.Event) bool {
	if s.eventType != AllEvents && s.eventType != event.Type {
		return false
	}

	return s.source == "" || s.source == event.Source
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Subscriptions int   `json:"subscriptions"`
	HistorySize   int   `json:"history_size"`
	Emitted       int64 `json:"emitted"`
	Delivered     int64 `json:"delivered"`
	HandlerErrors int64 `json:"handler_errors"`
}

// Bus routes events to subscribers in subscription order and keeps a bounded
// history ring. All mutation happens inside single non-blocking critical
// sections; handlers run outside the lock so they may subscribe or emit.
type Bus struct {
	logger *slog.Logger

	mu            sync.Mutex
	subscriptions []*subscription
	byID          map[string]*subscription
	history       []events.Event
	historyCap    int
	emitted       int64
	delivered     int64
	handlerErrors int64
}

type Option func(*Bus)

func WithHistoryCapacity(capacity int) Option {
	return func(b *Bus) {
		if capacity > 0 {
			b.historyCap = capacity
		}
	}
}

func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	bus := &Bus{
		logger:     logger.With("module", "eventbus"),
		byID:       make(map[string]*subscription),
		historyCap: DefaultHistoryCapacity,
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// Subscribe registers a handler for an event type and returns the
// subscription id. It never fails.
func (b *Bus) Subscribe(eventType events.EventType, handler Handler) string {
	return b.SubscribeWithSource(eventType, "", handler)
}

// SubscribeWithSource additionally filters on the event's Source field.
func (b *Bus) SubscribeWithSource(eventType events.EventType, source string, handler Handler) string {
	sub := &subscription{
		id:        "sub-" + uuid.New().String(),
		eventType: eventType,
		source:    source,
		handler:   handler,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscriptions = append(b.subscriptions, sub)
	b.byID[sub.id] = sub

	return sub.id
}

// Unsubscribe removes a subscription by id. It is idempotent and reports
// whether the subscription existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byID[id]; !ok {
		return false
	}

	delete(b.byID, id)

	for i, sub := range b.subscriptions {
		if sub.id == id {
			b.subscriptions = append(b.subscriptions[:i], b.subscriptions[i+1:]...)

			break
		}
	}

	return true
}

// Emit constructs an event, appends it to history and delivers it to every
// matching subscriber. A misbehaving subscriber (error or panic) is logged
// and never stops the other subscribers or reaches the emitter.
func (b *Bus) Emit(ctx context.Context, eventType events.EventType, data map[string]any) events.Event {
	return b.EmitFrom(ctx, eventType, data, "", "")
}

// EmitFrom is Emit with the optional source and target fields set.
func (b *Bus) EmitFrom(ctx context.Context, eventType events.EventType, data map[string]any, source, target string) events.Event {
	event := events.New(eventType, data)
	event.Source = source
	event.Target = target

	b.mu.Lock()
	b.emitted++
	b.history = append(b.history, event)

	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}

	matching := make([]*subscription, 0, len(b.subscriptions))

	for _, sub := range b.subscriptions {
		if sub.matches(event) {
			matching = append(matching, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matching {
		b.deliver(ctx, sub, event)
	}

	return event
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.handlerErrors++
			b.mu.Unlock()
			b.logger.Error("Subscriber panicked handling event",
				"subscription_id", sub.id, "event_type", event.Type, "panic", fmt.Sprintf("%v", r))
		}
	}()

	err := sub.handler(ctx, event)

	b.mu.Lock()
	b.delivered++

	if err != nil {
		b.handlerErrors++
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("Subscriber failed handling event",
			"subscription_id", sub.id, "event_type", event.Type, "error", err)
	}
}

// WaitForEvent blocks until the first event of the given type (and passing
// the optional filter) emitted after this call, or fails with a TimeoutError
// when the deadline expires. It never matches events already in history.
func (b *Bus) WaitForEvent(ctx context.Context, eventType events.EventType, timeout time.Duration, filter FilterFunc) (events.Event, error) {
	if timeout <= 0 {
		return events.Event{}, ErrInvalidTimeout
	}

	return b.waitAfter(ctx, eventType, timeout, filter, nil)
}

// Request emits a request-type event and awaits the response-type event
// carrying the same request id in its payload. It is the sole
// request/response pattern in the system, built entirely on emit, subscribe
// and WaitForEvent.
func (b *Bus) Request(ctx context.Context, requestType, responseType events.EventType, data map[string]any, timeout time.Duration) (events.Event, error) {
	if timeout <= 0 {
		return events.Event{}, ErrInvalidTimeout
	}

	requestID := uuid.New().String()

	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}

	payload[events.RequestIDKey] = requestID

	type waitResult struct {
		event events.Event
		err   error
	}

	done := make(chan waitResult, 1)

	// The wait must be registered before the request is emitted, otherwise a
	// synchronous responder could answer before anyone is listening.
	ready := make(chan struct{})

	go func() {
		subscribed := func() {
			close(ready)
		}

		event, err := b.waitAfter(ctx, responseType, timeout, func(event events.Event) bool {
			return event.Data[events.RequestIDKey] == requestID
		}, subscribed)

		done <- waitResult{event: event, err: err}
	}()

	<-ready
	b.Emit(ctx, requestType, payload)

	result := <-done
	if result.err != nil {
		var timeoutErr *models.TimeoutError
		if errors.As(result.err, &timeoutErr) {
			return events.Event{}, &models.TimeoutError{
				Op:      fmt.Sprintf("request %s", requestType),
				Timeout: timeout,
			}
		}

		return events.Event{}, result.err
	}

	return result.event, nil
}

// waitAfter is WaitForEvent with a hook invoked once the subscription is in
// place.
func (b *Bus) waitAfter(ctx context.Context, eventType events.EventType, timeout time.Duration, filter FilterFunc, subscribed func()) (events.Event, error) {
	matched := make(chan events.Event, 1)

	subID := b.Subscribe(eventType, func(_ context.Context, event events.Event) error {
		if filter != nil && !filter(event) {
			return nil
		}

		select {
		case matched <- event:
		default:
		}

		return nil
	})
	defer b.Unsubscribe(subID)

	if subscribed != nil {
		subscribed()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event := <-matched:
		return event, nil
	case <-timer.C:
		return events.Event{}, &models.TimeoutError{
			Op:      fmt.Sprintf("wait for event %s", eventType),
			Timeout: timeout,
		}
	case <-ctx.Done():
		return events.Event{}, ctx.Err()
	}
}

// GetEventHistory returns up to limit most recent events, newest last,
// optionally filtered by type. A zero limit returns everything retained.
func (b *Bus) GetEventHistory(eventType events.EventType, limit int) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]events.Event, 0, len(b.history))

	for _, event := range b.history {
		if eventType == "" || eventType == AllEvents || event.Type == eventType {
			result = append(result, event)
		}
	}

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result
}

func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = nil
}

// SubscriptionCount counts subscriptions that would receive the given type,
// including AllEvents subscribers.
func (b *Bus) SubscriptionCount(eventType events.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0

	for _, sub := range b.subscriptions {
		if sub.eventType == eventType || sub.eventType == AllEvents {
			count++
		}
	}

	return count
}

func (b *Bus) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Subscriptions: len(b.subscriptions),
		HistorySize:   len(b.history),
		Emitted:       b.emitted,
		Delivered:     b.delivered,
		HandlerErrors: b.handlerErrors,
	}
}
