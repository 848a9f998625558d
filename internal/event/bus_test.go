package event

import (
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := NewBus(zap.NewNop())

	var called int32
	b.Subscribe(ItemCreated, func(e Event) {
		atomic.AddInt32(&called, 1)
		if e.Type != ItemCreated {
			t.Errorf("expected type %s, got %s", ItemCreated, e.Type)
		}
		if e.Payload["chat_type"] != "web" {
			t.Errorf("expected payload chat_type=web, got %v", e.Payload["chat_type"])
		}
		if e.Time.IsZero() {
			t.Error("expected publish time to be set")
		}
	})

	b.Publish(Event{
		Type:    ItemCreated,
		Payload: map[string]interface{}{"chat_type": "web"},
		Source:  "test",
	})

	if atomic.LoadInt32(&called) != 1 {
		t.Fatal("handler was not called")
	}
}

func TestBusWildcard(t *testing.T) {
	b := NewBus(zap.NewNop())

	var count int32
	b.Subscribe("*", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	b.Publish(Event{Type: AIModelUpdated})
	b.Publish(Event{Type: ThreadDeleted})

	if atomic.LoadInt32(&count) != 2 {
		t.Fatalf("expected wildcard handler called 2 times, got %d", count)
	}
}

func TestBusPanicRecovery(t *testing.T) {
	b := NewBus(zap.NewNop())

	var reached int32
	b.Subscribe(AIModelDeleted, func(e Event) { panic("boom") })
	b.Subscribe(AIModelDeleted, func(e Event) { atomic.AddInt32(&reached, 1) })

	b.Publish(Event{Type: AIModelDeleted})

	if atomic.LoadInt32(&reached) != 1 {
		t.Fatal("handler after a panicking handler was not called")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(Event{Type: ItemCreated})
}
