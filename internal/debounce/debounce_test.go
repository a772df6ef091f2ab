package debounce_test

import (
	"testing"
	"time"

	"crossdock/internal/debounce"
	"crossdock/internal/token"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newDebouncer(clock *manualClock) *debounce.Debouncer {
	return debounce.New(75*time.Millisecond, 2*time.Second, debounce.WithClock(clock.Now))
}

func TestWedgeRejectsAnyTokenInsideWindow(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	d := newDebouncer(clock)

	if !d.Check("TAC555", token.SourceWedge) {
		t.Fatal("first token must be accepted")
	}
	clock.Advance(10 * time.Millisecond)
	if d.Check("TAC555", token.SourceWedge) {
		t.Fatal("double-injected token must be rejected")
	}
	clock.Advance(10 * time.Millisecond)
	if d.Check("TAC556", token.SourceWedge) {
		t.Fatal("different token inside the wedge window must still be rejected")
	}
	clock.Advance(100 * time.Millisecond)
	if !d.Check("TAC556", token.SourceWedge) {
		t.Fatal("token after the window must be accepted")
	}
}

func TestManualSharesWedgeWindow(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	d := newDebouncer(clock)

	if !d.Check("TAC555", token.SourceManual) {
		t.Fatal("first manual token must be accepted")
	}
	clock.Advance(20 * time.Millisecond)
	if d.Check("TAC555", token.SourceWedge) {
		t.Fatal("wedge arrival inside the shared window must be rejected")
	}
}

func TestCameraRejectsOnlyIdenticalToken(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	d := newDebouncer(clock)

	if !d.Check("TAC555", token.SourceCamera) {
		t.Fatal("first decode must be accepted")
	}
	clock.Advance(500 * time.Millisecond)
	if d.Check("TAC555", token.SourceCamera) {
		t.Fatal("re-emitted decode inside the camera window must be rejected")
	}
	if !d.Check("TAC556", token.SourceCamera) {
		t.Fatal("a different barcode in frame must process immediately")
	}
	clock.Advance(3 * time.Second)
	if !d.Check("TAC556", token.SourceCamera) {
		t.Fatal("same barcode after the window must be accepted")
	}
}

func TestRejectionDoesNotExtendWindow(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	d := newDebouncer(clock)

	if !d.Check("TAC555", token.SourceCamera) {
		t.Fatal("first decode must be accepted")
	}
	// Re-emits every 100ms; the window is measured from the accepted scan,
	// not from the last rejection.
	for i := 0; i < 19; i++ {
		clock.Advance(100 * time.Millisecond)
		d.Check("TAC555", token.SourceCamera)
	}
	clock.Advance(200 * time.Millisecond)
	if !d.Check("TAC555", token.SourceCamera) {
		t.Fatal("token past the accepted-scan window must be accepted")
	}
}

func TestResetClearsGuards(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	d := newDebouncer(clock)

	d.Check("TAC555", token.SourceWedge)
	d.Reset()
	if !d.Check("TAC555", token.SourceWedge) {
		t.Fatal("token after reset must be accepted")
	}
}
