// ABOUTME: SQLite implementation of the FinanceStore interface
// ABOUTME: Opens the database, creates the schema, applies migrations, and seeds categories

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SQLiteStore implements FinanceStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger

	// beforeCommit runs between an insert and its commit. Tests only.
	beforeCommit func()
}

var _ FinanceStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens a SQLite store at the given path using the pure-Go driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return OpenSQLite(DriverModernc, path)
}

// OpenSQLite opens a SQLite store with the named driver ("sqlite" or "sqlite3").
func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.seedCategories(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding categories: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS customers (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			phone         TEXT,
			date_of_birth TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id      INTEGER NOT NULL,
			amount_cents     INTEGER NOT NULL,
			category         TEXT NOT NULL,
			subcategory      TEXT,
			description      TEXT,
			transaction_date TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			created_at       TEXT NOT NULL,
			FOREIGN KEY (customer_id) REFERENCES customers(id),

			CHECK (amount_cents > 0),
			CHECK (transaction_type IN ('income', 'expense'))
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_customer_date
			ON transactions(customer_id, transaction_date);

		CREATE TABLE IF NOT EXISTS financial_goals (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id          INTEGER NOT NULL,
			goal_name            TEXT NOT NULL,
			goal_type            TEXT NOT NULL,
			target_amount_cents  INTEGER NOT NULL,
			current_amount_cents INTEGER NOT NULL DEFAULT 0,
			target_date          TEXT,
			priority             TEXT NOT NULL DEFAULT 'medium',
			status               TEXT NOT NULL DEFAULT 'active',
			created_at           TEXT NOT NULL,
			updated_at           TEXT NOT NULL,
			FOREIGN KEY (customer_id) REFERENCES customers(id),

			CHECK (target_amount_cents >= 0),
			CHECK (current_amount_cents >= 0),
			CHECK (goal_type IN ('savings', 'investment', 'debt_payoff', 'purchase')),
			CHECK (priority IN ('low', 'medium', 'high')),
			CHECK (status IN ('active', 'completed', 'paused', 'cancelled'))
		);

		CREATE INDEX IF NOT EXISTS idx_goals_customer_status
			ON financial_goals(customer_id, status);

		CREATE TABLE IF NOT EXISTS advice_history (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id      INTEGER NOT NULL,
			agent_name       TEXT NOT NULL,
			advice_type      TEXT NOT NULL,
			advice_content   TEXT NOT NULL,
			confidence_score REAL,
			metadata_json    TEXT,
			created_at       TEXT NOT NULL,
			FOREIGN KEY (customer_id) REFERENCES customers(id),

			CHECK (confidence_score IS NULL OR (confidence_score >= 0 AND confidence_score <= 1))
		);

		CREATE INDEX IF NOT EXISTS idx_advice_customer
			ON advice_history(customer_id, id);

		CREATE TABLE IF NOT EXISTS agent_interactions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id       TEXT NOT NULL,
			customer_id      INTEGER,
			from_agent       TEXT NOT NULL,
			to_agent         TEXT,
			interaction_type TEXT NOT NULL,
			message_content  TEXT NOT NULL,
			context_json     TEXT,
			created_at       TEXT NOT NULL,
			FOREIGN KEY (customer_id) REFERENCES customers(id)
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_session
			ON agent_interactions(session_id, id);

		CREATE TABLE IF NOT EXISTS spending_categories (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			category_name   TEXT NOT NULL,
			parent_category TEXT NOT NULL DEFAULT '',
			description     TEXT,
			is_income       INTEGER NOT NULL DEFAULT 0,
			is_active       INTEGER NOT NULL DEFAULT 1,

			UNIQUE (category_name, parent_category)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "transactions",
			column: "payment_method",
			apply:  `ALTER TABLE transactions ADD COLUMN payment_method TEXT`,
		},
		{
			table:  "financial_goals",
			column: "description",
			apply:  `ALTER TABLE financial_goals ADD COLUMN description TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// insertRow runs one INSERT in its own transaction and returns the new row id.
// The row is committed only while ctx is still live, so a caller that has
// already given up does not find it written afterwards.
func (s *SQLiteStore) insertRow(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading row id: %w", err)
	}

	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return id, nil
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation checks if the error is a SQLite FOREIGN KEY constraint violation
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// nullString converts empty strings to NULL for optional columns
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
