package dialect

import (
	"context"
)

// Supported dialects.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two standard SQL operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transaction commit and rollback around an ExecQuerier.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
