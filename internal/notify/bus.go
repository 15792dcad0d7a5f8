package notify

import (
	"context"
	"sync"
	"time"
)

// Bus is an in-process fan-out of hall change signals.  Each subscriber
// gets the time of the change; a subscriber that is not ready drops the
// signal, which is harmless since any later signal means the same.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan time.Time
	closed bool
}

// NewBus creates a Bus.
func NewBus() *Bus { return &Bus{} }

// HallChanged publishes a signal to every subscriber without blocking.
func (b *Bus) HallChanged(context.Context) error {
	b.Publish(time.Now().UTC())
	return nil
}

// Publish sends at to all subscribers.
func (b *Bus) Publish(at time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- at:
		default:
		}
	}
}

// Subscribe registers a subscriber.  The channel is closed by Unsubscribe
// or Close.
func (b *Bus) Subscribe() <-chan time.Time {
	ch := make(chan time.Time, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
