package offline

import (
	"time"

	"crossdock/internal/scan"
	"crossdock/internal/token"
)

// Status represents the lifecycle of a queued scan.
type Status string

const (
	// StatusPending entries await replay in enqueue order.
	StatusPending Status = "pending"
	// StatusFailed entries exhausted their replay attempts and need
	// operator attention.
	StatusFailed Status = "failed"
)

// QueuedScan is one shipment scan captured while offline.
type QueuedScan struct {
	ID int64
	// CorrelationID survives requeues so an entry can be traced across
	// replay attempts in the logs.
	CorrelationID string
	AWB           string
	Mode          scan.Mode
	// ManifestCode is the manifest bound when the scan was captured.
	// Empty for modes that do not use one.
	ManifestCode string
	Source       token.Source
	Status       Status
	EnqueuedAt   time.Time
	AttemptCount int
	LastError    string
}

// Stats summarizes queue contents.
type Stats struct {
	Pending int
	Failed  int
}
