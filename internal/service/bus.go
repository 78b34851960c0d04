package service

import "sync"

// EventKind names what changed on a viewer.
type EventKind string

const (
	EventLayers    EventKind = "layers"
	EventStatus    EventKind = "status"
	EventVector    EventKind = "vector"
	EventSelection EventKind = "selection"
	EventClosed    EventKind = "closed"
)

// Event represents a viewer state change.
type Event struct {
	Viewer string
	Kind   EventKind
}

// EventBus is a simple fan-out pub/sub for viewer change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]string // channel -> viewer filter ("" = all)
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]string)}
}

// Publish sends an event to matching subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, viewer := range b.subs {
		if viewer != "" && viewer != e.Viewer {
			continue
		}
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel receiving events for viewer.
// An empty viewer subscribes to every viewer.
func (b *EventBus) Subscribe(viewer string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = viewer
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// CloseViewer closes every subscriber filtered to viewer. Publish may drop
// events on a full buffer, so a torn-down viewer ends its streams this way.
func (b *EventBus) CloseViewer(viewer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, v := range b.subs {
		if v == viewer && viewer != "" {
			delete(b.subs, ch)
			close(ch)
		}
	}
}
