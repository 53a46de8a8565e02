// ABOUTME: Financial goal persistence for the SQLite store
// ABOUTME: Enforces status transitions and auto-completes goals that reach their target

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const goalColumns = `
	id, customer_id, goal_name, goal_type, target_amount_cents, current_amount_cents,
	target_date, priority, status, description, created_at, updated_at`

// CreateGoal inserts a goal and sets its ID and timestamps.
// Empty priority defaults to medium and empty status to active.
// Returns ErrCustomerNotFound if the customer doesn't exist.
func (s *SQLiteStore) CreateGoal(ctx context.Context, g *Goal) error {
	if g.Priority == "" {
		g.Priority = PriorityMedium
	}
	if g.Status == "" {
		g.Status = GoalActive
	}
	now := time.Now().UTC().Truncate(time.Second)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = g.CreatedAt

	id, err := s.insertRow(ctx, `
		INSERT INTO financial_goals (
			customer_id, goal_name, goal_type, target_amount_cents, current_amount_cents,
			target_date, priority, status, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.CustomerID,
		g.Name,
		string(g.Type),
		int64(g.TargetAmount),
		int64(g.CurrentAmount),
		nullString(g.TargetDate),
		string(g.Priority),
		string(g.Status),
		nullString(g.Description),
		formatTime(g.CreatedAt),
		formatTime(g.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("inserting goal: %w", err)
	}

	g.ID = id

	s.logger.Debug("created goal", "goal_id", g.ID, "customer_id", g.CustomerID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*Goal, error) {
	var g Goal
	var goalType, priority, status, createdAt, updatedAt string
	var target, current int64
	var targetDate, description sql.NullString

	if err := row.Scan(
		&g.ID, &g.CustomerID, &g.Name, &goalType, &target, &current,
		&targetDate, &priority, &status, &description, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	g.Type = GoalType(goalType)
	g.TargetAmount = Cents(target)
	g.CurrentAmount = Cents(current)
	g.TargetDate = targetDate.String
	g.Priority = GoalPriority(priority)
	g.Status = GoalStatus(status)
	g.Description = description.String
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

// GetGoal retrieves a goal by ID.
// Returns ErrGoalNotFound if the goal doesn't exist.
func (s *SQLiteStore) GetGoal(ctx context.Context, id int64) (*Goal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM financial_goals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying goal: %w", err)
	}
	return g, nil
}

// ListGoals returns a customer's goals ordered by priority (high first), then
// target date (undated last), then ID. An empty status returns every goal.
func (s *SQLiteStore) ListGoals(ctx context.Context, customerID int64, status GoalStatus) ([]*Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM financial_goals WHERE customer_id = ?`
	args := []any{customerID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += `
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
		         target_date IS NULL, target_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying goals: %w", err)
	}
	defer rows.Close()

	goals := []*Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating goals: %w", err)
	}
	return goals, nil
}

// ResolveGoalStatus applies the transition rules to a progress update and
// returns the status the goal should end up in.
func ResolveGoalStatus(g *Goal, p GoalProgress) (GoalStatus, error) {
	next := g.Status
	if p.Status != nil {
		next = *p.Status
	} else if g.Status == GoalActive && g.TargetAmount > 0 && p.CurrentAmount >= g.TargetAmount {
		next = GoalCompleted
	}
	if !CanTransition(g.Status, next) {
		return "", fmt.Errorf("%w: %s to %s", ErrInvalidTransition, g.Status, next)
	}
	return next, nil
}

// UpdateGoalProgress sets a goal's current amount and optionally its status in a
// single transaction. Without an explicit status, an active goal that reaches its
// target becomes completed.
func (s *SQLiteStore) UpdateGoalProgress(ctx context.Context, p GoalProgress) (*Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := scanGoal(tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM financial_goals WHERE id = ?`, p.GoalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying goal: %w", err)
	}

	next, err := ResolveGoalStatus(g, p)
	if err != nil {
		return nil, err
	}

	g.CurrentAmount = p.CurrentAmount
	g.Status = next
	g.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	if _, err := tx.ExecContext(ctx, `
		UPDATE financial_goals
		SET current_amount_cents = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, int64(g.CurrentAmount), string(g.Status), formatTime(g.UpdatedAt), g.ID); err != nil {
		return nil, fmt.Errorf("updating goal: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing goal update: %w", err)
	}

	s.logger.Debug("updated goal progress", "goal_id", g.ID, "status", g.Status)
	return g, nil
}
