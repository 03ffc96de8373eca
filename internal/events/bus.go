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
// Usage: bus.Publish(UpdateStateEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case UpdateStateEvent:
		event.Publish(b.dispatcher, e)
	case DownloadProgressEvent:
		event.Publish(b.dispatcher, e)
	case AttachmentReadyEvent:
		event.Publish(b.dispatcher, e)
	case AttachmentErrorEvent:
		event.Publish(b.dispatcher, e)
	case SettingsChangedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e UpdateStateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	// The kelindar/event library keys subscriptions by event type, so the
	// handler's parameter type decides what it receives
	switch h := handler.(type) {
	case func(UpdateStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DownloadProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AttachmentReadyEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AttachmentErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SettingsChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
