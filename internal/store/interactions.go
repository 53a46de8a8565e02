// ABOUTME: Interaction log recording messages passed between analysis stages
// ABOUTME: Entries are append-only and grouped by session ID for debugging a run

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Interaction types written by the orchestrator.
const (
	InteractionAnalysisComplete = "analysis_complete"
	InteractionStageFailed      = "stage_failed"
)

// LogInteraction appends an interaction entry and sets its ID.
// Returns ErrCustomerNotFound if a customer ID is set but doesn't exist.
func (s *SQLiteStore) LogInteraction(ctx context.Context, i *Interaction) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	contextJSON, err := marshalJSONMap(i.ContextData)
	if err != nil {
		return fmt.Errorf("marshaling interaction context: %w", err)
	}

	var customerID any
	if i.CustomerID != nil {
		customerID = *i.CustomerID
	}

	id, err := s.insertRow(ctx, `
		INSERT INTO agent_interactions (
			session_id, customer_id, from_agent, to_agent,
			interaction_type, message_content, context_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		i.SessionID,
		customerID,
		i.FromAgent,
		nullString(i.ToAgent),
		i.Type,
		i.MessageContent,
		contextJSON,
		formatTime(i.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("inserting interaction: %w", err)
	}

	i.ID = id

	s.logger.Debug("logged interaction",
		"interaction_id", i.ID,
		"session_id", i.SessionID,
		"type", i.Type,
	)
	return nil
}

// ListInteractions returns a session's interactions in the order they were logged.
func (s *SQLiteStore) ListInteractions(ctx context.Context, sessionID string) ([]*Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, customer_id, from_agent, to_agent,
		       interaction_type, message_content, context_json, created_at
		FROM agent_interactions
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var entries []*Interaction
	for rows.Next() {
		var i Interaction
		var customerID sql.NullInt64
		var toAgent, contextJSON sql.NullString
		var createdAt string

		if err := rows.Scan(
			&i.ID, &i.SessionID, &customerID, &i.FromAgent, &toAgent,
			&i.Type, &i.MessageContent, &contextJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}

		if customerID.Valid {
			id := customerID.Int64
			i.CustomerID = &id
		}
		i.ToAgent = toAgent.String
		i.ContextData = unmarshalJSONMap(contextJSON.String)
		i.CreatedAt = parseTime(createdAt)
		entries = append(entries, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interactions: %w", err)
	}

	return entries, nil
}
