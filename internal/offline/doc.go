// Package offline persists shipment scans captured without connectivity
// and replays them through the reconciliation engine when the link comes
// back. Replay is at-least-once: a crash mid-replay may redeliver, and the
// engine's idempotent membership handling absorbs the duplicates.
package offline
