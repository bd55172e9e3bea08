package event

import (
	"context"
	"sync"
)

// Bus is a bounded broadcast channel for events.
//
// Events are held in a fixed-size ring buffer. Every subscriber tracks
// its own read cursor, so one slow consumer never blocks publishers or
// other consumers. When a subscriber falls further behind than the ring
// retains, its next Recv returns a *LagError carrying the missed count
// and the cursor jumps forward to the oldest retained event.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Publish never blocks.
type Bus struct {
	mu       sync.Mutex
	ring     []Event
	capacity int

	// head is the sequence number the next published event will get.
	// Retained events cover [head-len(ring), head).
	head uint64

	// notify is closed and replaced on every publish so blocked
	// receivers wake up.
	notify chan struct{}

	closed bool
}

// NewBus creates a bus retaining up to capacity events.
// Capacity must be at least 1; smaller values are clamped.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		ring:     make([]Event, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}),
	}
}

// Publish appends an event to the ring, overwriting the oldest retained
// event when full. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	if len(b.ring) < b.capacity {
		b.ring = append(b.ring, ev)
	} else {
		b.ring[b.head%uint64(b.capacity)] = ev
	}
	b.head++

	// Wake all blocked receivers.
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

// Subscribe registers a new subscriber. The subscription starts at the
// current head: it sees only events published after this call.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription{
		bus:    b,
		cursor: b.head,
	}
}

// Close shuts the bus down. Blocked receivers wake up and drain any
// retained events they have not yet seen, then receive ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Len returns the number of currently retained events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Subscription is a single consumer's view of the bus.
//
// Not safe for concurrent Recv calls from multiple goroutines; each
// consumer should own its subscription.
type Subscription struct {
	bus    *Bus
	cursor uint64
	closed bool
}

// Recv returns the next event for this subscriber.
//
// Blocks until an event is available, the context is cancelled, the
// subscription is closed, or the bus shuts down. If the subscriber
// lagged past the ring capacity, Recv returns a *LagError and
// repositions the cursor to the oldest retained event; the subsequent
// Recv continues from there.
func (s *Subscription) Recv(ctx context.Context) (Event, error) {
	for {
		if s.closed {
			return Event{}, ErrSubscriptionClosed
		}

		s.bus.mu.Lock()

		oldest := s.bus.head - uint64(len(s.bus.ring))
		if s.cursor < oldest {
			missed := oldest - s.cursor
			s.cursor = oldest
			s.bus.mu.Unlock()
			return Event{}, &LagError{Missed: missed}
		}

		if s.cursor < s.bus.head {
			ev := s.bus.ring[s.cursor%uint64(s.bus.capacity)]
			s.cursor++
			s.bus.mu.Unlock()
			return ev.DeepCopy(), nil
		}

		if s.bus.closed {
			s.bus.mu.Unlock()
			return Event{}, ErrBusClosed
		}

		notify := s.bus.notify
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-notify:
			// New event or shutdown; loop and re-check.
		}
	}
}

// Close marks the subscription closed. Subsequent Recv calls return
// ErrSubscriptionClosed.
func (s *Subscription) Close() {
	s.closed = true
}
