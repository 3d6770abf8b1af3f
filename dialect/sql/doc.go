// Package sql provides the SQL query adapter: a Selector implementing
// the query-object contract (equality and inclusion filters, ordering,
// and the three association-attachment modes), a thin driver wrapper
// over database/sql, and a loader that executes a selector together
// with its preload instructions and materializes generic records.
//
// The three attachment modes mirror the loading plan's placement
// rules:
//
//   - Preload: separate statements per association level; the primary
//     row set is untouched.
//   - Join: a join used only by WHERE/ORDER machinery.
//   - JoinPreload: a single join that also materializes the to-one row.
package sql
