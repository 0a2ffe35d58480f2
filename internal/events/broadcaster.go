// Package events provides the in-process fan-out channel between event
// ingestion and live consumers such as SSE streams. Publishing never blocks
// the ingestion path: slow consumers lose their oldest buffered events first.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/logging"
)

// subscriberBufferSize is the per-subscriber channel capacity. When a
// subscriber falls this far behind, its oldest pending event is dropped to
// make room for the newest one.
const subscriberBufferSize = 100

// Subscription is a single consumer's view of the broadcast stream. Events
// arrive on C in publish order, minus any dropped while the consumer lagged.
type Subscription struct {
	ID uint64
	C  chan *datastore.TelemetryEvent

	dropped atomic.Uint64
}

// Dropped reports how many events this subscription lost to buffer overflow.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Broadcaster fans classified events out to all active subscribers.
// The zero value is not usable; use NewBroadcaster.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[uint64]*Subscription
	nextID      atomic.Uint64
	closed      bool

	published atomic.Uint64
	dropped   atomic.Uint64

	logger *slog.Logger
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]*Subscription),
		logger:      logging.ForService("events"),
	}
}

// Subscribe registers a new consumer. The caller must eventually call
// Unsubscribe with the returned subscription's ID.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		ID: b.nextID.Add(1),
		C:  make(chan *datastore.TelemetryEvent, subscriberBufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	b.subscribers[sub.ID] = sub
	b.logger.Debug("subscriber added", "id", sub.ID, "total", len(b.subscribers))
	return sub
}

// Unsubscribe removes a consumer and closes its channel. Safe to call with
// an unknown or already removed ID.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(sub.C)
	b.logger.Debug("subscriber removed", "id", id, "total", len(b.subscribers))
}

// Publish delivers ev to every subscriber without blocking. A subscriber
// whose buffer is full loses its oldest pending event.
func (b *Broadcaster) Publish(ev *datastore.TelemetryEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	b.published.Add(1)
	for _, sub := range b.subscribers {
		for {
			select {
			case sub.C <- ev:
			default:
				// Buffer full: evict the oldest and retry once. The
				// eviction can race with the consumer draining the
				// channel, so the loop covers the re-filled case too.
				select {
				case <-sub.C:
					sub.dropped.Add(1)
					b.dropped.Add(1)
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Stats returns lifetime publish and drop totals.
func (b *Broadcaster) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Shutdown closes all subscriber channels and rejects further publishes.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.C)
	}
	b.logger.Info("broadcaster shut down", "published", b.published.Load(), "dropped", b.dropped.Load())
}
