// Package token normalizes raw scanner input and classifies it into a
// tagged reference. Parsing is pure: no side effects, no state.
package token

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Source identifies the input pipeline that produced a token.
type Source string

const (
	SourceWedge  Source = "wedge"
	SourceCamera Source = "camera"
	SourceManual Source = "manual"
)

// ParseSource converts a string into a known Source.
func ParseSource(value string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(value))) {
	case SourceWedge:
		return SourceWedge, true
	case SourceCamera:
		return SourceCamera, true
	case SourceManual:
		return SourceManual, true
	default:
		return "", false
	}
}

// Kind tags the structural classification of a scanned token.
type Kind string

const (
	KindManifest     Kind = "manifest"
	KindShipment     Kind = "shipment"
	KindUnrecognized Kind = "unrecognized"
)

// Reference is the classified form of one scanned token. Immutable once
// produced.
type Reference struct {
	Kind Kind
	// Value is the normalized manifest code or shipment AWB. Empty for
	// unrecognized input.
	Value string
	// Raw preserves the input exactly as it arrived.
	Raw string
}

// Normalizer classifies raw tokens. The manifest prefix is configurable
// because sites label manifests differently.
type Normalizer struct {
	manifestPrefix string
}

// NewNormalizer builds a Normalizer with the given manifest code prefix.
func NewNormalizer(manifestPrefix string) *Normalizer {
	prefix := strings.ToUpper(strings.TrimSpace(manifestPrefix))
	if prefix == "" {
		prefix = "MAN-"
	}
	return &Normalizer{manifestPrefix: prefix}
}

// Normalize folds, trims, and upper-cases a raw token. Wedge scanners on
// some host IMEs emit fullwidth compatibility forms, so the fold runs
// before any structural checks.
func Normalize(raw string) string {
	folded := norm.NFKC.String(raw)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, folded)
	return strings.ToUpper(strings.TrimSpace(cleaned))
}

// Parse classifies a raw token into a Reference.
//
// Tokens the structural parse does not recognize fall back to shipment
// references: operators' scanners sometimes emit site-specific codes, and
// silently refusing to act on them is worse than guessing shipment-type.
func (n *Normalizer) Parse(raw string) Reference {
	normalized := Normalize(raw)
	if normalized == "" {
		return Reference{Kind: KindUnrecognized, Raw: raw}
	}

	if rest, ok := strings.CutPrefix(normalized, n.manifestPrefix); ok && rest != "" {
		return Reference{Kind: KindManifest, Value: normalized, Raw: raw}
	}

	if isAWB(normalized) {
		return Reference{Kind: KindShipment, Value: normalized, Raw: raw}
	}

	// Tolerant fallback: treat anything non-empty as a shipment reference.
	return Reference{Kind: KindShipment, Value: normalized, Raw: raw}
}

// isAWB reports whether a normalized token matches the alphanumeric
// shipment reference shape (letters, digits, internal dashes).
func isAWB(value string) bool {
	if len(value) < 4 {
		return false
	}
	for i, r := range value {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' && i > 0 && i < len(value)-1:
		default:
			return false
		}
	}
	return true
}
