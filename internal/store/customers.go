// ABOUTME: Customer persistence for the SQLite store
// ABOUTME: Customers are created explicitly, edited in place, and never deleted

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateCustomer inserts a customer and sets its ID and timestamps.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *Customer) error {
	now := time.Now().UTC().Truncate(time.Second)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (name, email, phone, date_of_birth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		c.Name,
		c.Email,
		nullString(c.Phone),
		nullString(c.DateOfBirth),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting customer: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading customer id: %w", err)
	}

	s.logger.Debug("created customer", "customer_id", c.ID)
	return nil
}

// GetCustomer retrieves a customer by ID.
// Returns ErrCustomerNotFound if the customer doesn't exist.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	var phone, dob sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, date_of_birth, created_at, updated_at
		FROM customers
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Email, &phone, &dob, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	c.Phone = phone.String
	c.DateOfBirth = dob.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// UpdateCustomer applies a partial edit and bumps updated_at.
// Returns ErrCustomerNotFound or ErrDuplicateEmail.
func (s *SQLiteStore) UpdateCustomer(ctx context.Context, id int64, u CustomerUpdate) (*Customer, error) {
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Empty() {
		return c, nil
	}

	u.apply(c)
	c.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, email = ?, phone = ?, date_of_birth = ?, updated_at = ?
		WHERE id = ?
	`,
		c.Name,
		c.Email,
		nullString(c.Phone),
		nullString(c.DateOfBirth),
		formatTime(c.UpdatedAt),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("updating customer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrCustomerNotFound
	}

	s.logger.Debug("updated customer", "customer_id", id)
	return c, nil
}
