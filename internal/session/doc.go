// Package session owns per-operator scanning state: the selected operation
// mode, the bound manifest, the capped outcome history with running
// counters, and the scan event bus shared by all input surfaces.
//
// The mode and manifest are mutated only by the reconciliation engine and
// by explicit operator actions; no other component writes them.
package session
