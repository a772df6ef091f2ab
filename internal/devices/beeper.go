package devices

import (
	"io"
	"sync"

	"crossdock/internal/feedback"
)

// Beeper plays feedback tones as terminal bell patterns. Scan stations
// rarely have more than a PC speaker; distinct bell counts are enough to
// tell success from trouble without looking up.
type Beeper struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBeeper builds a beeper writing to w.
func NewBeeper(w io.Writer) *Beeper {
	return &Beeper{w: w}
}

// PlayTone implements feedback.TonePlayer.
func (b *Beeper) PlayTone(kind feedback.Tone) error {
	var pattern string
	switch kind {
	case feedback.ToneSuccess:
		pattern = "\a"
	case feedback.ToneManifestActive:
		pattern = "\a\a"
	case feedback.ToneError:
		pattern = "\a\a\a"
	case feedback.ToneDuplicate:
		pattern = "\a\a\a\a"
	default:
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.w, pattern)
	return err
}
