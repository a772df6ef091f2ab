// Package link tracks backend connectivity and notifies subscribers on
// state transitions. The offline-queue replayer keys off the offline→online
// edge; nothing in the system polls connectivity in a loop.
package link

import "sync"

// Listener receives the new connectivity state after a transition.
type Listener func(online bool)

// Monitor holds the current connectivity state.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]Listener
}

// NewMonitor builds a monitor starting in the given state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, listeners: make(map[int]Listener)}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity observation. Listeners fire only when
// the state actually changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	snapshot := make([]Listener, 0, len(m.listeners))
	for _, listener := range m.listeners {
		snapshot = append(snapshot, listener)
	}
	m.mu.Unlock()

	for _, listener := range snapshot {
		listener(online)
	}
}

// Subscribe registers a transition listener and returns its unsubscribe
// function.
func (m *Monitor) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
