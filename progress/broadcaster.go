package progress

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer is the per-subscriber channel depth. When a subscriber
// falls behind, the oldest buffered snapshot is dropped so the newest one
// always gets through.
const subscriberBuffer = 1

// Broadcaster fans progress snapshots out to independent subscribers.
// Publish never blocks on a slow consumer.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan Snapshot
	nextID uint64
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[uint64]chan Snapshot),
	}
}

// Subscribe registers a new subscriber and returns its snapshot channel with
// a cancel function. The channel is closed when cancel is called or the
// broadcaster is closed.
func (b *Broadcaster) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers snap to every subscriber without blocking. A subscriber
// whose buffer is full has its stale snapshot replaced by snap.
func (b *Broadcaster) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale value, then try once more. If another
			// publisher won the race, losing this snapshot is fine.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Close closes every subscriber channel and rejects further publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Debug("Progress broadcaster closed")
}
