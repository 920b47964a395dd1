package events

import (
	"log/slog"
	"slices"
)

// FuncObserver adapts a function to the Observer interface.
type FuncObserver struct {
	name  string
	types []string
	fn    func(Event) error
}

// NewFuncObserver creates an observer that calls fn for the listed event
// types, or for every event when types is empty.
func NewFuncObserver(name string, fn func(Event) error, types ...string) *FuncObserver {
	return &FuncObserver{name: name, types: types, fn: fn}
}

// OnEvent calls the wrapped function.
func (o *FuncObserver) OnEvent(event Event) error { return o.fn(event) }

// GetName returns the observer's name.
func (o *FuncObserver) GetName() string { return o.name }

// ShouldHandle reports whether eventType is one of the observer's types.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	return len(o.types) == 0 || slices.Contains(o.types, eventType)
}

// LoggingObserver writes every event to a structured logger at debug level.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a logging observer.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// OnEvent logs the event payload.
func (o *LoggingObserver) OnEvent(event Event) error {
	switch p := event.TypedData.(type) {
	case SessionChangedEvent:
		o.logger.Debug("session changed", "authenticated", p.Authenticated, "user", p.Username, "reason", p.Reason)
	case CollectionChangedEvent:
		o.logger.Debug("collection changed", "op", p.Op, "item", p.ItemID, "count", p.Count)
	default:
		o.logger.Debug("event", "type", event.Type)
	}
	return nil
}

// GetName returns the observer's name.
func (o *LoggingObserver) GetName() string { return "LoggingObserver" }

// ShouldHandle accepts every event.
func (o *LoggingObserver) ShouldHandle(string) bool { return true }
