package events

import (
	"log"
	"sync"
	"time"
)

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 16

// Bus fans events out to named subscribers. Publish copies the event into
// every subscriber channel that has room and drops it for the ones that
// don't; the publisher never waits.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]chan Event
	dropped map[string]uint64
	buffer  int
}

// NewBus creates a Bus whose subscriber channels hold up to buffer events.
// A non-positive buffer uses DefaultBuffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:    make(map[string]chan Event),
		dropped: make(map[string]uint64),
		buffer:  buffer,
	}
}

// Subscribe registers a subscriber under id and returns its event channel.
// Subscribing again under the same id replaces (and closes) the previous
// channel.
func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subs[id]; ok {
		close(old)
	}
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	b.dropped[id] = 0
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
		delete(b.dropped, id)
	}
}

// Publish delivers the event to every subscriber without blocking. A full
// subscriber channel drops the event; drops are counted per subscriber.
// An unset timestamp is stamped with the current time.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped[id]++
			if b.dropped[id]%100 == 1 {
				log.Printf("event bus: subscriber %q lagging, %d events dropped", id, b.dropped[id])
			}
		}
	}
}

// Dropped returns how many events have been dropped for the subscriber.
func (b *Bus) Dropped(id string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped[id]
}

// Close closes all subscriber channels and empties the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
		delete(b.dropped, id)
	}
}
