// Package daemon composes the scan station runtime: record and offline
// stores, the reconciliation engine, device pumps, and the offline
// replayer, behind a single-instance file lock.
package daemon
