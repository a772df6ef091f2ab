// Package feedback maps scan outcomes to operator cues. The emitter is
// stateless and fire-and-forget: a broken speaker must never fail a scan.
package feedback

import (
	"log/slog"

	"crossdock/internal/logging"
	"crossdock/internal/scan"
)

// Tone identifies an audio/haptic cue kind.
type Tone string

const (
	ToneSuccess          Tone = "success"
	ToneDuplicate        Tone = "duplicate"
	ToneError            Tone = "error"
	ToneManifestActive   Tone = "manifest_active"
	ToneNone             Tone = ""
)

// TonePlayer is the device collaborator that produces an audible or haptic
// cue. Implementations live outside this package.
type TonePlayer interface {
	PlayTone(kind Tone) error
}

// Emitter translates outcome classes into tones.
type Emitter struct {
	player TonePlayer
	logger *slog.Logger
}

// NewEmitter builds an emitter. A nil player disables cues entirely.
func NewEmitter(player TonePlayer, logger *slog.Logger) *Emitter {
	return &Emitter{
		player: player,
		logger: logging.NewComponentLogger(logger, "feedback"),
	}
}

// Emit plays the cue for an outcome. Device errors are swallowed after a
// debug log; debounced outcomes stay silent so a camera loop cannot turn
// the station into a beeping nuisance.
func (e *Emitter) Emit(outcome scan.Outcome) {
	if e == nil || e.player == nil {
		return
	}

	tone := ToneFor(outcome)
	if tone == ToneNone {
		return
	}

	if err := e.player.PlayTone(tone); err != nil {
		e.logger.Debug("tone playback failed",
			logging.Error(err),
			logging.String("tone", string(tone)),
		)
	}
}

// ToneFor maps an outcome class to its cue.
func ToneFor(outcome scan.Outcome) Tone {
	switch outcome.Class {
	case scan.ClassManifestActivated:
		return ToneManifestActive
	case scan.ClassDuplicate:
		return ToneDuplicate
	case scan.ClassSuccess, scan.ClassQueued:
		return ToneSuccess
	case scan.ClassError:
		return ToneError
	default:
		return ToneNone
	}
}
