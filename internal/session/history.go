package session

import (
	"sync"

	"crossdock/internal/scan"
)

// HistoryCap bounds the in-memory outcome log.
const HistoryCap = 50

// Stats carries the session's running counters. Debounced scans live in
// their own category: they are routine absorption, not failures, and must
// not alarm the operator the way real errors do.
type Stats struct {
	ScanCount      int
	SuccessCount   int
	ErrorCount     int
	DuplicateCount int
	DebouncedCount int
}

// History is a bounded ring of scan outcomes plus running counters. Newest
// entries sit at the front. Reset only by explicit operator action.
type History struct {
	mu      sync.RWMutex
	entries []scan.Outcome
	stats   Stats
}

// NewHistory builds an empty history log.
func NewHistory() *History {
	return &History{entries: make([]scan.Outcome, 0, HistoryCap)}
}

// Append pushes an outcome to the front, dropping the oldest past the cap,
// and increments the matching counter in the same call.
func (h *History) Append(outcome scan.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]scan.Outcome{outcome}, h.entries...)
	if len(h.entries) > HistoryCap {
		h.entries = h.entries[:HistoryCap]
	}

	h.stats.ScanCount++
	switch outcome.Class {
	case scan.ClassDuplicate:
		h.stats.DuplicateCount++
	case scan.ClassDebounced:
		h.stats.DebouncedCount++
	case scan.ClassError:
		h.stats.ErrorCount++
	default:
		h.stats.SuccessCount++
	}
}

// Entries returns a copy of the log, newest first.
func (h *History) Entries() []scan.Outcome {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make([]scan.Outcome, len(h.entries))
	copy(cp, h.entries)
	return cp
}

// Stats returns a snapshot of the running counters.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// Reset clears the log and counters.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
	h.stats = Stats{}
}
