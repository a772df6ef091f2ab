package session

import (
	"sync"

	"crossdock/internal/token"
)

// ScanListener receives every raw token published on the bus.
type ScanListener func(raw string, source token.Source)

// Bus fans raw scan events out to every subscribed screen so multiple
// consumers can share one physical scanner without re-registering device
// listeners. It is an injected object owned by the composition root, not
// package-level state.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]ScanListener
}

// NewBus builds an empty scan event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]ScanListener)}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (b *Bus) Subscribe(listener ScanListener) func() {
	if listener == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers a raw token to every current listener.
func (b *Bus) Publish(raw string, source token.Source) {
	b.mu.RLock()
	snapshot := make([]ScanListener, 0, len(b.listeners))
	for _, listener := range b.listeners {
		snapshot = append(snapshot, listener)
	}
	b.mu.RUnlock()

	for _, listener := range snapshot {
		listener(raw, source)
	}
}
