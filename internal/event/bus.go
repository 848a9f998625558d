package event

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types published by the services.
const (
	AIModelUpdated = "aimodel.updated"
	AIModelDeleted = "aimodel.deleted"
	ThreadDeleted  = "thread.deleted"
	ItemCreated    = "item.created"
)

// Event represents something that happened in the system.
type Event struct {
	Type    string                 `json:"type"`    // e.g. "aimodel.updated", "item.created"
	Payload map[string]interface{} `json:"payload"` // event-specific data
	Source  string                 `json:"source"`  // originating service
	Time    time.Time              `json:"time"`
}

// Handler is a callback that processes an event.
type Handler func(event Event)

// Bus is an in-memory publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewBus creates a new Bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event type.
// Use "*" to subscribe to all events.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish dispatches an event to all matching subscribers.
// Handlers run synchronously in registration order; a panicking handler
// is recovered and logged without affecting the others.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.handlers["*"]))
	handlers = append(handlers, b.handlers[event.Type]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						zap.String("event", event.Type),
						zap.String("source", event.Source),
						zap.Any("panic", r),
					)
				}
			}()
			h(event)
		}()
	}
}
