// Package scan holds the shared scan-domain model: operation modes,
// outcome classification, and the error taxonomy every component reports
// against.
package scan

import "strings"

// Mode is the operator's selected task. It persists until explicitly
// changed; switching mode clears the active manifest context.
type Mode string

const (
	ModeReceive        Mode = "RECEIVE"
	ModeLoadManifest   Mode = "LOAD_MANIFEST"
	ModeVerifyManifest Mode = "VERIFY_MANIFEST"
	ModeDeliver        Mode = "DELIVER"
)

var allModes = []Mode{ModeReceive, ModeLoadManifest, ModeVerifyManifest, ModeDeliver}

// AllModes returns the ordered list of known modes.
func AllModes() []Mode {
	cp := make([]Mode, len(allModes))
	copy(cp, allModes)
	return cp
}

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	normalized := Mode(strings.ToUpper(strings.TrimSpace(value)))
	for _, mode := range allModes {
		if mode == normalized {
			return mode, true
		}
	}
	return "", false
}

// UsesManifest reports whether a mode operates against a bound manifest.
func (m Mode) UsesManifest() bool {
	return m == ModeLoadManifest || m == ModeVerifyManifest
}
