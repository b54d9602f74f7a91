// Package events carries operational notifications from the services to
// live subscribers: the websocket stream, and other instances through
// the optional Redis bridge.
package events

import (
	"sync"
	"time"

	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// Event is one operational notification. Data carries a small
// type-specific payload; full records stay behind the REST API.
type Event struct {
	Type     string                 `json:"type"`
	EntityID string                 `json:"entity_id"`
	At       time.Time              `json:"at"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Publisher is the write side of the hub. Services hold this interface
// so tests can capture events without a running hub.
type Publisher interface {
	Publish(evt Event)
}

// Hub fans events out to subscribers. Delivery is best-effort: a
// subscriber that stops draining loses events rather than blocking the
// publishing service.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	forward func(Event)
	log     *logger.Logger
}

var _ Publisher = (*Hub)(nil)

// subscriberBuffer bounds how far a slow subscriber may fall behind.
const subscriberBuffer = 16

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Hub{
		subs: make(map[int]chan Event),
		log:  log,
	}
}

// Publish stamps and delivers the event to every subscriber, and hands
// it to the cross-instance forwarder when a bridge is attached.
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	h.deliver(evt)

	h.mu.RLock()
	forward := h.forward
	h.mu.RUnlock()
	if forward != nil {
		forward(evt)
	}
}

// deliver fans out to local subscribers only. The bridge uses it for
// events arriving from other instances so they are not re-forwarded.
func (h *Hub) deliver(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.log.WithField("subscriber", id).
				WithField("type", evt.Type).
				Debug("subscriber full; event dropped")
		}
	}
}

// Subscribe registers a listener. The returned cancel func removes the
// subscription and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the current listener count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) setForward(fn func(Event)) {
	h.mu.Lock()
	h.forward = fn
	h.mu.Unlock()
}
