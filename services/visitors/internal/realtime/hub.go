// Package realtime fans visitor change events from the bus out to
// Server-Sent Events subscribers.
package realtime

import (
	"context"
	"sync"

	"github.com/accueilpro/accueilpro/pkg/events"
	"github.com/accueilpro/accueilpro/pkg/logger"
)

const subscriberBuffer = 16

type Hub struct {
	mu     sync.Mutex
	subs   map[chan events.ChangeEvent]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan events.ChangeEvent]struct{})}
}

// Subscribe registers a listener. The channel is closed by the returned
// cancel func or when the hub stops.
func (h *Hub) Subscribe() (<-chan events.ChangeEvent, func()) {
	ch := make(chan events.ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Broadcast never blocks: a subscriber whose buffer is full misses the
// event. Any later event triggers a full refetch on its side anyway.
func (h *Hub) Broadcast(ev events.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("Dropping change event for slow subscriber", "record_id", ev.RecordID)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Listen feeds the hub from the bus. onChange runs before each broadcast so
// caches are dropped before subscribers refetch.
func (h *Hub) Listen(bus events.Subscriber, onChange func(context.Context)) error {
	return bus.Subscribe(events.VisitorsAll, func(msg *events.Message) {
		ev, err := events.DecodeChange(msg)
		if err != nil {
			logger.Warn("Ignoring malformed change event", "error", err)
			return
		}
		if onChange != nil {
			onChange(context.Background())
		}
		h.Broadcast(ev)
	})
}

// Run blocks until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	return nil
}
