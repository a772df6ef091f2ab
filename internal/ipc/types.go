package ipc

import "time"

// ScanRequest submits one token for processing.
type ScanRequest struct {
	Token  string `json:"token"`
	Source string `json:"source"`
}

// OutcomeDTO is the wire form of a scan outcome.
type OutcomeDTO struct {
	Class     string    `json:"class"`
	Success   bool      `json:"success"`
	Duplicate bool      `json:"duplicate"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Reference string    `json:"reference,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanResponse carries the processing outcome.
type ScanResponse struct {
	Outcome OutcomeDTO `json:"outcome"`
}

// ModeSetRequest switches the operation mode.
type ModeSetRequest struct {
	Mode string `json:"mode"`
}

// ModeSetResponse confirms the active mode.
type ModeSetResponse struct {
	Mode string `json:"mode"`
}

// ManifestClearRequest drops the active manifest binding.
type ManifestClearRequest struct{}

// ManifestClearResponse confirms the clear.
type ManifestClearResponse struct {
	Cleared bool `json:"cleared"`
}

// SessionResetRequest clears manifest context and session history.
type SessionResetRequest struct{}

// SessionResetResponse confirms the reset.
type SessionResetResponse struct {
	Reset bool `json:"reset"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and session status.
type StatusResponse struct {
	Running        bool   `json:"running"`
	PID            int    `json:"pid"`
	Mode           string `json:"mode"`
	ActiveManifest string `json:"active_manifest,omitempty"`
	ManifestStatus string `json:"manifest_status,omitempty"`
	Online         bool   `json:"online"`
	Draining       bool   `json:"draining"`
	QueuePending   int    `json:"queue_pending"`
	QueueFailed    int    `json:"queue_failed"`
	RecordsDBPath  string `json:"records_db_path"`
	QueueDBPath    string `json:"queue_db_path"`
	LockPath       string `json:"lock_path"`
}

// HistoryRequest fetches session outcomes, newest first.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains session outcomes.
type HistoryResponse struct {
	Outcomes []OutcomeDTO `json:"outcomes"`
}

// StatsRequest fetches session counters.
type StatsRequest struct{}

// StatsResponse contains session counters.
type StatsResponse struct {
	ScanCount      int `json:"scan_count"`
	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
	DuplicateCount int `json:"duplicate_count"`
	DebouncedCount int `json:"debounced_count"`
}

// QueueEntry is the wire form of an offline-queue entry.
type QueueEntry struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	AWB           string    `json:"awb"`
	Mode          string    `json:"mode"`
	ManifestCode  string    `json:"manifest_code,omitempty"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains offline queue entries.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// QueueRetryRequest retries failed entries. Empty list means all.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried entries.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueClearFailedRequest removes failed entries.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearRequest removes all entries.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// LinkSetRequest marks backend connectivity up or down.
type LinkSetRequest struct {
	Online bool `json:"online"`
}

// LinkSetResponse confirms the new link state.
type LinkSetResponse struct {
	Online bool `json:"online"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse confirms shutdown.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
