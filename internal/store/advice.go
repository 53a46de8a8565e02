// ABOUTME: Append-only advice history written by analysis stages
// ABOUTME: Metadata is stored as a JSON object alongside the advice text

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultAdviceLimit = 50
	maxAdviceLimit     = 1000
)

// SaveAdvice appends an advice record and sets its ID.
// Returns ErrCustomerNotFound if the customer doesn't exist.
func (s *SQLiteStore) SaveAdvice(ctx context.Context, a *Advice) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	metadataJSON, err := marshalJSONMap(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling advice metadata: %w", err)
	}

	var confidence any
	if a.ConfidenceScore != nil {
		confidence = *a.ConfidenceScore
	}

	id, err := s.insertRow(ctx, `
		INSERT INTO advice_history (
			customer_id, agent_name, advice_type, advice_content,
			confidence_score, metadata_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		a.CustomerID,
		a.AgentName,
		a.AdviceType,
		a.Content,
		confidence,
		metadataJSON,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("inserting advice: %w", err)
	}

	a.ID = id

	s.logger.Debug("saved advice",
		"advice_id", a.ID,
		"customer_id", a.CustomerID,
		"agent_name", a.AgentName,
	)
	return nil
}

// normalizeAdviceLimit applies default and max bounds.
func normalizeAdviceLimit(limit int) int {
	if limit <= 0 {
		return defaultAdviceLimit
	}
	if limit > maxAdviceLimit {
		return maxAdviceLimit
	}
	return limit
}

// ListAdvice returns a customer's advice history, newest first.
func (s *SQLiteStore) ListAdvice(ctx context.Context, f AdviceFilter) ([]*Advice, error) {
	query := `
		SELECT id, customer_id, agent_name, advice_type, advice_content,
		       confidence_score, metadata_json, created_at
		FROM advice_history
		WHERE customer_id = ?`
	args := []any{f.CustomerID}

	if f.AgentName != "" {
		query += " AND agent_name = ?"
		args = append(args, f.AgentName)
	}
	if f.AdviceType != "" {
		query += " AND advice_type = ?"
		args = append(args, f.AdviceType)
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, normalizeAdviceLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying advice: %w", err)
	}
	defer rows.Close()

	advice := []*Advice{}
	for rows.Next() {
		var a Advice
		var confidence sql.NullFloat64
		var metadataJSON sql.NullString
		var createdAt string

		if err := rows.Scan(
			&a.ID, &a.CustomerID, &a.AgentName, &a.AdviceType, &a.Content,
			&confidence, &metadataJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning advice: %w", err)
		}

		if confidence.Valid {
			v := confidence.Float64
			a.ConfidenceScore = &v
		}
		a.Metadata = unmarshalJSONMap(metadataJSON.String)
		a.CreatedAt = parseTime(createdAt)
		advice = append(advice, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating advice: %w", err)
	}

	return advice, nil
}

// marshalJSONMap encodes an optional map as a JSON column value.
func marshalJSONMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// unmarshalJSONMap decodes a JSON column value, ignoring malformed content.
func unmarshalJSONMap(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
