// Package sqlite persists the manifest and the scheduler state in one
// SQLite database (modernc.org/sqlite, no cgo).
//
// Manifest entries are append-only. Registering a version inserts the row
// and moves the artifact's current pointer in one transaction, so a reader
// sees the old version or the new one and nothing in between. Generation
// ids come from a per-corpus counter in the same database.
//
// Schema changes are numbered scripts under migrations/, embedded in the
// binary and applied once each at open. The database runs in WAL mode and
// lives at ~/.smartmarket/data/smartmarket.db unless configured otherwise.
package sqlite
