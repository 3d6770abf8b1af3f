// Package dialect provides the database abstraction consumed by the
// SQL query adapter: dialect constants, the Driver interface wrapping
// Exec/Query/Tx, and the ExecQuerier contract shared by drivers and
// transactions.
//
// The core resolution and planning components perform no I/O of their
// own; this package exists for the adapter in dialect/sql that applies
// loading plans and permission scopes to real queries.
package dialect
