// Package database manages the SQLite store backing the event journal.
// It owns connection setup (WAL mode, busy timeout, single-writer pool)
// and schema migrations embedded in the binary.
package database
