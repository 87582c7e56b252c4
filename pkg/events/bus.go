package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber buffer capacity.
const DefaultBufferSize = 256

// Config contains event bus configuration.
type Config struct {
	// BufferSize is the per-subscriber channel capacity.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
}

// Subscription is one subscriber's view of the bus. Receive from
// Events; the channel closes on Unsubscribe or bus Close.
type Subscription struct {
	id uint64
	ch chan Event

	// mu serializes delivery against close so no send can hit a
	// closed channel.
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64

	bus *Bus
}

// Events returns the receive channel for this subscription.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were dropped because this
// subscriber's buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe removes the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
	s.shutdown()
}

// deliver hands the event to this subscriber without ever blocking.
// A full buffer sheds its oldest event first, so the newest events win.
func (s *Subscription) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- event:
			return
		default:
		}
		// Buffer full: drop the oldest slot and retry. Only the
		// subscriber drains concurrently, so this terminates.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Bus broadcasts events to all current subscribers.
//
// The bus lock protects only the subscriber list and is never held
// across a send, so Publish completes in bounded time regardless of
// subscriber count or speed.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	bufferSize int
	published  atomic.Uint64

	// droppedRetired carries the drop counts of departed subscribers so
	// DroppedTotal stays monotonic.
	droppedRetired atomic.Uint64

	countsMu sync.Mutex
	byType   map[string]uint64
}

// NewBus creates an event bus.
func NewBus(config Config) *Bus {
	config.ApplyDefaults()
	return &Bus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: config.BufferSize,
		byType:     make(map[string]uint64),
	}
}

// Subscribe registers a new subscriber with a dedicated buffer.
// Subscribing to a closed bus returns an already-closed subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:  b.nextID,
		ch:  make(chan Event, b.bufferSize),
		bus: b,
	}
	if b.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish broadcasts the event to every subscriber. It never blocks
// and never fails; slow subscribers lose their oldest events instead.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	b.countsMu.Lock()
	b.byType[event.Name()]++
	b.countsMu.Unlock()

	for _, sub := range targets {
		sub.deliver(event)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published returns the total number of events published.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// PublishedByType returns a snapshot of publish counts keyed by event
// name.
func (b *Bus) PublishedByType() map[string]uint64 {
	b.countsMu.Lock()
	defer b.countsMu.Unlock()
	out := make(map[string]uint64, len(b.byType))
	for name, count := range b.byType {
		out[name] = count
	}
	return out
}

// DroppedTotal returns the number of events dropped across the life of
// the bus, including subscribers that have since unsubscribed.
func (b *Bus) DroppedTotal() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := b.droppedRetired.Load()
	for _, sub := range b.subs {
		total += sub.dropped.Load()
	}
	return total
}

// Close shuts the bus down and closes every subscription. Publishing
// to a closed bus is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		b.droppedRetired.Add(sub.dropped.Load())
		subs = append(subs, sub)
	}
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		b.droppedRetired.Add(sub.dropped.Load())
		delete(b.subs, id)
	}
}
