package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(PipelineEOSEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case PipelineStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case PipelineErrorEvent:
		event.Publish(b.dispatcher, e)
	case PipelineEOSEvent:
		event.Publish(b.dispatcher, e)
	case LatencyChangedEvent:
		event.Publish(b.dispatcher, e)
	case PropertySetEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e PipelineEOSEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PipelineStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PipelineErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PipelineEOSEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LatencyChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PropertySetEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
