// Package events provides a synchronous observer dispatcher used to fan
// session and collection transitions out to every interested consumer.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Event is a domain event delivered to observers.
type Event struct {
	// Type is the event type, e.g. "session:changed".
	Type string

	// TypedData holds the payload; use GetTypedData to read it.
	TypedData any

	// Context is the context of the operation that raised the event.
	Context context.Context
}

// Observer is notified of dispatched events.
type Observer interface {
	// OnEvent handles one event. A returned error is logged and does not
	// stop delivery to the remaining observers.
	OnEvent(event Event) error

	// GetName returns a human-readable name for logging.
	GetName() string

	// ShouldHandle reports whether the observer wants events of this type.
	ShouldHandle(eventType string) bool
}

// EventDispatcher delivers events to registered observers in registration
// order. Safe for concurrent use.
type EventDispatcher struct {
	observers []Observer
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewEventDispatcher creates a dispatcher. A nil logger uses slog.Default().
func NewEventDispatcher(logger *slog.Logger) *EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDispatcher{logger: logger.With("component", "events")}
}

// Register adds an observer.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, observer)
	d.logger.Debug("registered observer", "observer", observer.GetName())
}

// Unregister removes an observer, preserving the order of the rest.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, obs := range d.observers {
		if obs == observer {
			d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
			d.logger.Debug("unregistered observer", "observer", observer.GetName())
			return
		}
	}
}

// Dispatch notifies every interested observer before returning.
func (d *EventDispatcher) Dispatch(event Event) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, observer := range observers {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			d.logger.Warn("observer failed to handle event",
				"observer", observer.GetName(), "event", event.Type, "error", err)
		}
	}
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// Clear removes all registered observers.
func (d *EventDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = nil
}

// NewTypedEvent creates an Event carrying data.
func NewTypedEvent[T any](ctx context.Context, eventType string, data T) Event {
	return Event{Type: eventType, TypedData: data, Context: ctx}
}

// GetTypedData extracts the payload of an Event. Returns the zero value and
// false if the payload is not a T.
func GetTypedData[T any](event Event) (T, bool) {
	typed, ok := event.TypedData.(T)
	return typed, ok
}
