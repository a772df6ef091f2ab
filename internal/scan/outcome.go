package scan

import "time"

// ErrorCode classifies why a scan did not fully succeed. Expected business
// conditions are reported through these codes, never through Go errors.
type ErrorCode string

const (
	CodeEmptyScan           ErrorCode = "EMPTY_SCAN"
	CodeInvalidScanType     ErrorCode = "INVALID_SCAN_TYPE"
	CodeDebounced           ErrorCode = "DEBOUNCED"
	CodeWrongManifestStatus ErrorCode = "WRONG_MANIFEST_STATUS"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeNoActiveManifest    ErrorCode = "NO_ACTIVE_MANIFEST"
	CodeMisroute            ErrorCode = "MISROUTE"
	CodeScanInFlight        ErrorCode = "SCAN_IN_FLIGHT"
	CodeRequestCancelled    ErrorCode = "REQUEST_CANCELLED"
	CodeSystemError         ErrorCode = "SYSTEM_ERROR"
)

// Class partitions outcomes for feedback cues and session counters.
type Class string

const (
	ClassSuccess           Class = "success"
	ClassManifestActivated Class = "manifest_activated"
	ClassDuplicate         Class = "duplicate"
	ClassQueued            Class = "queued"
	ClassDebounced         Class = "debounced"
	ClassError             Class = "error"
)

// Outcome is the structured result of one processing attempt. Every scan
// produces exactly one; expected conditions (duplicate, debounce,
// validation failure) never surface as Go errors.
type Outcome struct {
	Class     Class
	Success   bool
	Duplicate bool
	Code      ErrorCode
	Message   string
	// Reference is the related AWB or manifest code, when known.
	Reference string
	// Retryable marks transient failures the operator may immediately retry.
	Retryable bool
	Timestamp time.Time
}

// IsError reports whether the outcome represents a hard failure.
func (o Outcome) IsError() bool {
	return o.Class == ClassError
}

// Succeeded builds a plain success outcome.
func Succeeded(message, reference string) Outcome {
	return Outcome{
		Class:     ClassSuccess,
		Success:   true,
		Message:   message,
		Reference: reference,
		Timestamp: time.Now().UTC(),
	}
}

// ManifestActivated builds the distinct success outcome for a manifest bind,
// so the UI can play an activation cue instead of the generic success cue.
func ManifestActivated(message, code string) Outcome {
	return Outcome{
		Class:     ClassManifestActivated,
		Success:   true,
		Message:   message,
		Reference: code,
		Timestamp: time.Now().UTC(),
	}
}

// DuplicateScan builds the soft outcome for an already-applied scan.
func DuplicateScan(message, reference string) Outcome {
	return Outcome{
		Class:     ClassDuplicate,
		Success:   true,
		Duplicate: true,
		Message:   message,
		Reference: reference,
		Timestamp: time.Now().UTC(),
	}
}

// Queued builds the immediate success outcome for a scan captured offline.
func Queued(message, reference string) Outcome {
	return Outcome{
		Class:     ClassQueued,
		Success:   true,
		Message:   message,
		Reference: reference,
		Timestamp: time.Now().UTC(),
	}
}

// Debounced builds the soft outcome for a guard-window hit. It is not an
// error: session counters track it in its own non-alarming category.
func Debounced(reference string) Outcome {
	return Outcome{
		Class:     ClassDebounced,
		Code:      CodeDebounced,
		Message:   "Scan absorbed by debounce guard",
		Reference: reference,
		Timestamp: time.Now().UTC(),
	}
}

// Failed builds a hard error outcome.
func Failed(code ErrorCode, message, reference string) Outcome {
	return Outcome{
		Class:     ClassError,
		Code:      code,
		Message:   message,
		Reference: reference,
		Retryable: code == CodeRequestCancelled || code == CodeScanInFlight,
		Timestamp: time.Now().UTC(),
	}
}
