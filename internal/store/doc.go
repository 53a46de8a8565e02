// Package store provides persistent storage for customer financial records using SQLite.
//
// # Architecture
//
// FinanceStore is the single interface consumed by the tool handlers. SQLiteStore
// implements it against a SQLite database, and MockStore implements it in memory
// for tests.
//
// Two drivers are supported and selected by name:
//
//   - "sqlite": modernc.org/sqlite, pure Go (default)
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//
// # Data Models
//
//   - Customer: identity; owner of every other record
//   - Transaction: immutable income or expense entry
//   - Goal: target with status lifecycle (active, paused, completed, cancelled)
//   - Advice: append-only conclusion written by an analysis stage
//   - Interaction: append-only stage-to-stage message keyed by session
//   - Category: fixed seed list of income and expense categories
//
// # Money
//
// Amounts are stored as integer cents (Cents). ToCents rounds to the nearest
// cent, so values submitted with at most two decimals read back exactly.
//
// # Errors
//
// Lookups return ErrCustomerNotFound or ErrGoalNotFound, both of which match
// ErrNotFound under errors.Is. Inserts that reference a missing customer map the
// SQLite foreign key failure to ErrCustomerNotFound.
package store
