// Package records defines the shipment/manifest record store the
// reconciliation engine mutates, plus a SQLite implementation. The engine
// depends only on the Store interface; hosted backends can substitute their
// own implementation.
package records
