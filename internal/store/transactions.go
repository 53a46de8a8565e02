// ABOUTME: Transaction persistence and spending aggregation for the SQLite store
// ABOUTME: Transactions are immutable once recorded

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	defaultTransactionLimit = 100
	maxTransactionLimit     = 1000
)

// AddTransaction records a transaction and sets its ID.
// Returns ErrCustomerNotFound if the customer doesn't exist.
func (s *SQLiteStore) AddTransaction(ctx context.Context, t *Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	id, err := s.insertRow(ctx, `
		INSERT INTO transactions (
			customer_id, amount_cents, category, subcategory, description,
			transaction_date, transaction_type, payment_method, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.CustomerID,
		int64(t.Amount),
		t.Category,
		nullString(t.Subcategory),
		nullString(t.Description),
		t.Date,
		string(t.Type),
		nullString(t.PaymentMethod),
		formatTime(t.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("inserting transaction: %w", err)
	}

	t.ID = id

	s.logger.Debug("added transaction",
		"transaction_id", t.ID,
		"customer_id", t.CustomerID,
		"type", t.Type,
	)
	return nil
}

// normalizeTransactionLimit applies default and max bounds.
func normalizeTransactionLimit(limit int) int {
	if limit <= 0 {
		return defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		return maxTransactionLimit
	}
	return limit
}

// ListTransactions returns a customer's transactions, newest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error) {
	query := `
		SELECT id, customer_id, amount_cents, category, subcategory, description,
		       transaction_date, transaction_type, payment_method, created_at
		FROM transactions
		WHERE customer_id = ?`
	args := []any{f.CustomerID}

	if f.Since != "" {
		query += " AND transaction_date >= ?"
		args = append(args, f.Since)
	}
	if f.Until != "" {
		query += " AND transaction_date <= ?"
		args = append(args, f.Until)
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Type != "" {
		query += " AND transaction_type = ?"
		args = append(args, string(f.Type))
	}

	query += " ORDER BY transaction_date DESC, id DESC LIMIT ?"
	args = append(args, normalizeTransactionLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		var t Transaction
		var amount int64
		var txType, createdAt string
		var subcategory, description, paymentMethod sql.NullString

		if err := rows.Scan(
			&t.ID, &t.CustomerID, &amount, &t.Category, &subcategory, &description,
			&t.Date, &txType, &paymentMethod, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		t.Amount = Cents(amount)
		t.Type = TransactionType(txType)
		t.Subcategory = subcategory.String
		t.Description = description.String
		t.PaymentMethod = paymentMethod.String
		t.CreatedAt = parseTime(createdAt)
		txns = append(txns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txns, nil
}

// SpendingSummary aggregates a customer's transactions by category and by month.
// An empty since means all time. Ordering is deterministic so identical calls
// without intervening writes return identical summaries.
func (s *SQLiteStore) SpendingSummary(ctx context.Context, customerID int64, since string) (*SpendingSummary, error) {
	where := "WHERE customer_id = ?"
	args := []any{customerID}
	if since != "" {
		where += " AND transaction_date >= ?"
		args = append(args, since)
	}

	summary := &SpendingSummary{CustomerID: customerID, Since: since}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, transaction_type, SUM(amount_cents), COUNT(*)
		FROM transactions `+where+`
		GROUP BY category, transaction_type
		ORDER BY SUM(amount_cents) DESC, category ASC, transaction_type ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying category totals: %w", err)
	}
	for rows.Next() {
		var ct CategoryTotal
		var txType string
		var total int64
		if err := rows.Scan(&ct.Category, &txType, &total, &ct.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning category total: %w", err)
		}
		ct.Type = TransactionType(txType)
		ct.Total = Cents(total)
		summary.TransactionCount += ct.Count
		summary.Categories = append(summary.Categories, ct)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterating category totals: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT substr(transaction_date, 1, 7) AS month,
		       COALESCE(SUM(CASE WHEN transaction_type = 'income' THEN amount_cents END), 0),
		       COALESCE(SUM(CASE WHEN transaction_type = 'expense' THEN amount_cents END), 0)
		FROM transactions `+where+`
		GROUP BY month
		ORDER BY month DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying monthly totals: %w", err)
	}
	for rows.Next() {
		var mt MonthTotal
		var income, expenses int64
		if err := rows.Scan(&mt.Month, &income, &expenses); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning monthly total: %w", err)
		}
		mt.Income = Cents(income)
		mt.Expenses = Cents(expenses)
		summary.Months = append(summary.Months, mt)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterating monthly totals: %w", err)
	}

	return summary, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// SinceMonths returns the first day of the month that is months-1 months before now,
// so months=1 covers the current calendar month. Zero or negative months means all time.
func SinceMonths(now time.Time, months int) string {
	if months <= 0 {
		return ""
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(months - 1), 0).Format(DateLayout)
}

// Totals derives income, expense, and monthly averages from a summary.
// Averages divide by the number of months that have any transactions.
type Totals struct {
	Income             Cents
	Expenses           Cents
	AvgMonthlyIncome   float64
	AvgMonthlyExpenses float64
}

// Net returns income minus expenses.
func (t Totals) Net() Cents {
	return t.Income - t.Expenses
}

// Totals computes the summary totals.
func (s *SpendingSummary) Totals() Totals {
	var t Totals
	for _, m := range s.Months {
		t.Income += m.Income
		t.Expenses += m.Expenses
	}
	if n := len(s.Months); n > 0 {
		t.AvgMonthlyIncome = roundTo(t.Income.Float64()/float64(n), 2)
		t.AvgMonthlyExpenses = roundTo(t.Expenses.Float64()/float64(n), 2)
	}
	return t
}

// categoryKey is used by the mock store to aggregate deterministically.
func categoryKey(category string, t TransactionType) string {
	return strings.Join([]string{category, string(t)}, "\x00")
}
