package feedback_test

import (
	"errors"
	"testing"

	"crossdock/internal/feedback"
	"crossdock/internal/logging"
	"crossdock/internal/scan"
)

type recordingPlayer struct {
	tones []feedback.Tone
	err   error
}

func (p *recordingPlayer) PlayTone(kind feedback.Tone) error {
	p.tones = append(p.tones, kind)
	return p.err
}

func TestEmitMapsClassesToTones(t *testing.T) {
	cases := []struct {
		name    string
		outcome scan.Outcome
		tone    feedback.Tone
	}{
		{"success", scan.Succeeded("ok", ""), feedback.ToneSuccess},
		{"queued", scan.Queued("queued", "TAC555"), feedback.ToneSuccess},
		{"manifest", scan.ManifestActivated("bound", "MAN-0001"), feedback.ToneManifestActive},
		{"duplicate", scan.DuplicateScan("again", "TAC555"), feedback.ToneDuplicate},
		{"error", scan.Failed(scan.CodeNotFound, "missing", ""), feedback.ToneError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			player := &recordingPlayer{}
			emitter := feedback.NewEmitter(player, logging.NewNop())
			emitter.Emit(tc.outcome)
			if len(player.tones) != 1 || player.tones[0] != tc.tone {
				t.Fatalf("expected tone %q, got %v", tc.tone, player.tones)
			}
		})
	}
}

func TestEmitStaysSilentForDebounce(t *testing.T) {
	player := &recordingPlayer{}
	emitter := feedback.NewEmitter(player, logging.NewNop())
	emitter.Emit(scan.Debounced("TAC555"))
	if len(player.tones) != 0 {
		t.Fatalf("debounced outcome must not play a tone, got %v", player.tones)
	}
}

func TestEmitSwallowsDeviceErrors(t *testing.T) {
	player := &recordingPlayer{err: errors.New("speaker unplugged")}
	emitter := feedback.NewEmitter(player, logging.NewNop())
	// Must not panic and must not propagate.
	emitter.Emit(scan.Succeeded("ok", ""))
}

func TestEmitWithNilPlayer(t *testing.T) {
	emitter := feedback.NewEmitter(nil, logging.NewNop())
	emitter.Emit(scan.Succeeded("ok", ""))
}
