// Package queue persists the outcome of transfer jobs in SQLite.
//
// Every job that reaches a terminal state (completed, failed, or cancelled)
// is upserted into the jobs table keyed by its job id. The ledger backs the
// CLI history view and lets a later run see which books already failed.
//
// The database is treated as disposable. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema.
package queue
