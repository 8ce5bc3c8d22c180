package peer

import (
	"sync"

	"github.com/overspend1/oversync/pkg/types"
)

// subscriberBuffer is the bounded capacity of each subscription, per
// spec.md's event channel sizing.
const subscriberBuffer = 100

// EventBus broadcasts P2pEvents to any number of subscribers. A
// subscriber that falls behind misses events past its own buffer; it
// never blocks the publisher and never affects other subscribers.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[chan types.P2pEvent]struct{}
}

// NewEventBus returns an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[chan types.P2pEvent]struct{})}
}

// Subscription is a single subscriber's view of the bus.
type Subscription struct {
	bus *EventBus
	ch  chan types.P2pEvent
}

// Events returns the channel this subscription receives events on.
func (s *Subscription) Events() <-chan types.P2pEvent {
	return s.ch
}

// Close unsubscribes and closes the underlying channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subscribers[s.ch]; ok {
		delete(s.bus.subscribers, s.ch)
		close(s.ch)
	}
}

// Subscribe registers a new subscription with a bounded buffer.
func (b *EventBus) Subscribe() *Subscription {
	ch := make(chan types.P2pEvent, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return &Subscription{bus: b, ch: ch}
}

// Publish delivers ev to every current subscriber without blocking.
func (b *EventBus) Publish(ev types.P2pEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop for this subscriber only.
		}
	}
}
