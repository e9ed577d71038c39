package gateway

import (
	"sync"

	"gend/pkg/types"
)

const subscriberBuffer = 64

// Broadcaster fans session status events out to any number of event-stream
// subscribers. It satisfies session.Publisher. Slow subscribers have events
// dropped rather than stalling the worker goroutine.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan types.Status]struct{}
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan types.Status]struct{})}
}

// Publish delivers st to every subscriber without blocking.
func (b *Broadcaster) Publish(st types.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- st:
		default:
			eventsDroppedTotal.Inc()
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// func. The cancel func must be called when the subscriber goes away.
func (b *Broadcaster) Subscribe() (<-chan types.Status, func()) {
	ch := make(chan types.Status, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
