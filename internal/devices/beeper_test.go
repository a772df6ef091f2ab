package devices

import (
	"bytes"
	"testing"

	"crossdock/internal/feedback"
)

func TestBeeperPlaysDistinctPatterns(t *testing.T) {
	tones := []feedback.Tone{
		feedback.ToneSuccess,
		feedback.ToneManifestActive,
		feedback.ToneError,
		feedback.ToneDuplicate,
	}

	seen := map[string]feedback.Tone{}
	for _, tone := range tones {
		var buf bytes.Buffer
		beeper := NewBeeper(&buf)
		if err := beeper.PlayTone(tone); err != nil {
			t.Fatalf("PlayTone(%s): %v", tone, err)
		}
		pattern := buf.String()
		if pattern == "" {
			t.Fatalf("tone %s produced no output", tone)
		}
		if prev, dup := seen[pattern]; dup {
			t.Fatalf("tones %s and %s share pattern %q", prev, tone, pattern)
		}
		seen[pattern] = tone
	}
}

func TestBeeperIgnoresUnknownTone(t *testing.T) {
	var buf bytes.Buffer
	beeper := NewBeeper(&buf)
	if err := beeper.PlayTone(feedback.ToneNone); err != nil {
		t.Fatalf("PlayTone: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("silent tone wrote %q", buf.String())
	}
}
