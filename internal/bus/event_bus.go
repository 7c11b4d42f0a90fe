package bus

import (
	"log/slog"
	"time"
)

// Notifier is the contract between the manager core and the presentation layer.
// Notify must not block.
type Notifier interface {
	Notify(ev Event)
}

// EventBus is the default in-process Notifier backed by a buffered Go channel.
//
// Publishing never blocks: when the buffer is full the event is dropped and a
// warning is logged, since nobody is listening.
type EventBus struct {
	events chan Event
	now    func() time.Time
}

func NewEventBus(bufSize int) *EventBus {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &EventBus{
		events: make(chan Event, bufSize),
		now:    time.Now,
	}
}

// Notify enqueues ev, stamping At when unset.
func (b *EventBus) Notify(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	select {
	case b.events <- ev:
	default:
		slog.Warn("bus: buffer full, dropping event", "kind", ev.Kind)
	}
}

// Events returns a receive-only view of the queue.
func (b *EventBus) Events() <-chan Event {
	return b.events
}

// Drain returns every queued event without blocking.
func (b *EventBus) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-b.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Discard is a Notifier that drops every event.
type Discard struct{}

func (Discard) Notify(Event) {}
