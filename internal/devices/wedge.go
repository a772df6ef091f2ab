package devices

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"crossdock/internal/logging"
	"crossdock/internal/session"
	"crossdock/internal/token"
)

// Aggregator reassembles a keyboard-wedge keystroke stream into discrete
// tokens. A token ends on a terminator byte or when the stream goes idle
// longer than the configured gap: wedges type fast, humans do not, so a
// pause means the barcode is complete.
type Aggregator struct {
	idleGap time.Duration

	mu   sync.Mutex
	buf  []rune
	last time.Time
}

// NewAggregator builds an aggregator with the given idle gap.
func NewAggregator(idleGap time.Duration) *Aggregator {
	return &Aggregator{idleGap: idleGap}
}

func isTerminator(r rune) bool {
	switch r {
	case '\n', '\r', '\t', 0x1d:
		return true
	}
	return false
}

// Push feeds one rune at the given instant. It returns a completed token
// when the rune terminates one, or when the idle gap elapsed since the
// previous keystroke (the buffered token is released and the new rune
// starts the next one).
func (a *Aggregator) Push(r rune, at time.Time) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var done string
	var ready bool
	if len(a.buf) > 0 && a.idleGap > 0 && at.Sub(a.last) > a.idleGap {
		done = string(a.buf)
		ready = true
		a.buf = a.buf[:0]
	}

	a.last = at
	if isTerminator(r) {
		if ready {
			return done, true
		}
		if len(a.buf) == 0 {
			return "", false
		}
		done = string(a.buf)
		a.buf = a.buf[:0]
		return done, true
	}

	a.buf = append(a.buf, r)
	return done, ready
}

// Flush releases the buffered token if the stream has been idle past the
// gap as of the given instant. Driven by the run loop's ticker.
func (a *Aggregator) Flush(at time.Time) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buf) == 0 {
		return "", false
	}
	if a.idleGap > 0 && at.Sub(a.last) <= a.idleGap {
		return "", false
	}
	done := string(a.buf)
	a.buf = a.buf[:0]
	return done, true
}

// Drain releases whatever is buffered regardless of elapsed time. Called
// when the input stream closes.
func (a *Aggregator) Drain() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buf) == 0 {
		return "", false
	}
	done := string(a.buf)
	a.buf = a.buf[:0]
	return done, true
}

// Wedge pumps a keystroke byte stream through an Aggregator and publishes
// completed tokens on the scan bus.
type Wedge struct {
	agg    *Aggregator
	bus    *session.Bus
	logger *slog.Logger
}

// NewWedge wires a wedge pump.
func NewWedge(idleGap time.Duration, bus *session.Bus, logger *slog.Logger) *Wedge {
	return &Wedge{
		agg:    NewAggregator(idleGap),
		bus:    bus,
		logger: logging.NewComponentLogger(logger, "wedge"),
	}
}

// Run consumes the reader until EOF or context cancellation. An idle
// ticker flushes a buffered token when the scanner stops mid-stream
// without sending a terminator.
func (w *Wedge) Run(ctx context.Context, r io.Reader) error {
	runes := make(chan rune)
	readErr := make(chan error, 1)

	go func() {
		br := bufio.NewReader(r)
		for {
			ch, _, err := br.ReadRune()
			if err != nil {
				readErr <- err
				close(runes)
				return
			}
			select {
			case runes <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := w.agg.idleGap
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if tok, ok := w.agg.Flush(time.Now()); ok {
				w.publish(tok)
			}
		case ch, open := <-runes:
			if !open {
				if tok, ok := w.agg.Drain(); ok {
					w.publish(tok)
				}
				err := <-readErr
				if err == io.EOF {
					return nil
				}
				return err
			}
			if tok, ok := w.agg.Push(ch, time.Now()); ok {
				w.publish(tok)
			}
		}
	}
}

func (w *Wedge) publish(tok string) {
	w.logger.Debug("wedge token assembled", logging.Int("length", len(tok)))
	w.bus.Publish(tok, token.SourceWedge)
}
