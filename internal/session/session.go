package session

import (
	"sync"

	"crossdock/internal/records"
	"crossdock/internal/scan"
)

// Session holds the operator's current task and active manifest binding.
type Session struct {
	mu       sync.RWMutex
	mode     scan.Mode
	manifest *records.Manifest
}

// New builds a session starting in RECEIVE mode with no manifest bound.
func New() *Session {
	return &Session{mode: scan.ModeReceive}
}

// Mode returns the operator's selected task.
func (s *Session) Mode() scan.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the operator task. A new task always starts unbound, so
// the active manifest is cleared.
func (s *Session) SetMode(mode scan.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.manifest = nil
}

// ActiveManifest returns a copy of the bound manifest, or nil when unbound.
func (s *Session) ActiveManifest() *records.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manifest == nil {
		return nil
	}
	cp := *s.manifest
	return &cp
}

// BindManifest adopts a manifest as the session's active context.
func (s *Session) BindManifest(m *records.Manifest) {
	if m == nil {
		return
	}
	cp := *m
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = &cp
}

// ClearManifest drops the active manifest binding.
func (s *Session) ClearManifest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = nil
}
