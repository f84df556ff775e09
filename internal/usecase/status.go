package usecase

import (
	"sync"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// StatusBroadcaster fans tracker status out to subscribers. Publishing
// never blocks: a subscriber that has not drained its buffer loses its
// oldest pending value, so every subscriber eventually sees the latest one.
type StatusBroadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan domain.Status
	nextID  int
	last    domain.Status
	hasLast bool
	closed  bool
}

// NewStatusBroadcaster creates an empty broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{subs: make(map[int]chan domain.Status)}
}

// Subscribe registers a subscriber with the given buffer size (minimum 1).
// The latest status, if any, is delivered immediately. The returned cancel
// func unsubscribes and closes the channel.
func (b *StatusBroadcaster) Subscribe(buffer int) (<-chan domain.Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Status, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.hasLast {
		ch <- b.last
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers status to every subscriber without blocking.
func (b *StatusBroadcaster) Publish(status domain.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.last = status
	b.hasLast = true

	for _, ch := range b.subs {
		select {
		case ch <- status:
			continue
		default:
		}
		// Full: drop the oldest value and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- status:
		default:
		}
	}
}

// Latest returns the most recently published status.
func (b *StatusBroadcaster) Latest() (domain.Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *StatusBroadcaster) Close() {
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
