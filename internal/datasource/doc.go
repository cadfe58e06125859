// Package datasource is the thin database adapter used by models.
//
// A Datasource executes SQL with named :param placeholders, returns rows in
// column order, tracks the last insert id and owns at most one transaction at
// a time. Connection implements it over database/sql; Recorder decorates any
// Datasource to capture executed statements (golden traces, dry runs).
//
// # Drivers
//
//   - "sqlite3": github.com/mattn/go-sqlite3 (cgo, default)
//   - "sqlite":  modernc.org/sqlite (pure Go)
//
// Any other registered database/sql driver can be used; schema introspection
// then falls back to information_schema.
//
// # Connection registry
//
// Manager holds named connections. It is an explicit object handed to the
// model registry rather than process-wide state, so tests and tools can run
// isolated connection scopes side by side.
//
// # Transactions
//
// One connection is one transaction domain. Begin fails when a transaction is
// already open; callers sharing a connection must serialize their
// transactions.
package datasource
