package events

import (
	"sync"
	"sync/atomic"
)

// Bus fans events out to subscriber channels. A subscriber whose buffer is
// full misses the event; publishers never wait.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	closed  bool
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel with the given buffer and a function that
// removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Bus) Close() {
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
}
