// Package events carries notifications from the core to whatever shell is
// listening: the CLI, the websocket bridge, or a test recorder.
package events

import (
	"sync"
	"time"

	"github.com/muurk/lifxlab/internal/logging"
	"go.uber.org/zap"
)

const (
	// DeviceDiscovered is emitted once per StateService reply during discovery
	DeviceDiscovered = "device_discovered"

	// DeviceRemoved is emitted when a stale device is pruned from the registry
	DeviceRemoved = "device_removed"
)

// Sink receives named notifications
type Sink interface {
	Emit(name string, payload any)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(name string, payload any)

// Emit calls f(name, payload)
func (f SinkFunc) Emit(name string, payload any) {
	f(name, payload)
}

// Nop discards every notification
var Nop Sink = SinkFunc(func(string, any) {})

// Multi fans a notification out to every non-nil sink in order
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(name string, payload any) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(name, payload)
			}
		}
	})
}

// Event is a notification as delivered to Hub subscribers
type Event struct {
	Name    string    `json:"event"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

// Hub is a Sink that broadcasts events to any number of subscribers.
// Slow subscribers lose events rather than block the emitter.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	now    func() time.Time
}

// NewHub creates a hub with no subscribers
func NewHub() *Hub {
	return &Hub{
		subs: make(map[uint64]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber with the given channel buffer.
// The returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Emit delivers the event to every subscriber without blocking
func (h *Hub) Emit(name string, payload any) {
	ev := Event{Name: name, Payload: payload, Time: h.now()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logging.Warn("Dropping event for slow subscriber",
				zap.String("event", name),
				zap.Uint64("subscriber", id),
			)
		}
	}
}
