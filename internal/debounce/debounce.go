// Package debounce suppresses rapid-fire re-submission of scan tokens.
//
// Two independent guard windows exist because the failure modes differ: a
// keystroke-wedge scanner can double-inject an entire token within tens of
// milliseconds, while a camera decode loop re-emits the same result every
// frame for as long as the barcode stays in view.
package debounce

import (
	"sync"
	"time"

	"crossdock/internal/token"
)

// Debouncer tracks the last accepted token per pipeline class and rejects
// arrivals inside the guard window. Rejected tokens do not update state;
// windows are measured from the previous accepted token.
type Debouncer struct {
	wedgeGuard  time.Duration
	cameraGuard time.Duration
	now         func() time.Time

	mu         sync.Mutex
	lastWedge  entry
	lastCamera entry
}

type entry struct {
	token string
	at    time.Time
}

// Option customizes Debouncer construction.
type Option func(*Debouncer)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Debouncer) {
		if now != nil {
			d.now = now
		}
	}
}

// New builds a Debouncer with the given guard windows.
func New(wedgeGuard, cameraGuard time.Duration, opts ...Option) *Debouncer {
	d := &Debouncer{
		wedgeGuard:  wedgeGuard,
		cameraGuard: cameraGuard,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check reports whether a normalized token should be processed. A false
// return means the arrival fell inside the guard window and must be
// absorbed without a state mutation.
//
// Wedge and manual input share the short window and reject any token inside
// it: double injection duplicates whole tokens faster than an operator can
// physically scan two items. The camera window only rejects the identical
// token, so a different barcode entering the frame processes immediately.
func (d *Debouncer) Check(normalized string, source token.Source) bool {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	switch source {
	case token.SourceCamera:
		if !d.lastCamera.at.IsZero() &&
			d.lastCamera.token == normalized &&
			now.Sub(d.lastCamera.at) < d.cameraGuard {
			return false
		}
		d.lastCamera = entry{token: normalized, at: now}
		return true
	default:
		if !d.lastWedge.at.IsZero() && now.Sub(d.lastWedge.at) < d.wedgeGuard {
			return false
		}
		d.lastWedge = entry{token: normalized, at: now}
		return true
	}
}

// Reset clears all guard state. Used when the operator switches task.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastWedge = entry{}
	d.lastCamera = entry{}
}
