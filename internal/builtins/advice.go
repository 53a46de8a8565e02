// ABOUTME: Advice, interaction log, and category tool handlers.
// ABOUTME: Advice and interaction records are append-only.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

type saveAdviceInput struct {
	CustomerID      int64          `json:"customer_id"`
	AgentName       string         `json:"agent_name"`
	AdviceType      string         `json:"advice_type"`
	AdviceContent   string         `json:"advice_content"`
	ConfidenceScore *float64       `json:"confidence_score"`
	Metadata        map[string]any `json:"metadata"`
}

func (h *financeHandlers) SaveAdvice(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in saveAdviceInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.AdviceContent) == "" {
		return nil, packs.Failuref("advice_content must not be empty")
	}
	if c := in.ConfidenceScore; c != nil && (*c < 0 || *c > 1) {
		return nil, packs.Failuref("confidence_score must be between 0 and 1")
	}

	a := &store.Advice{
		CustomerID:      in.CustomerID,
		AgentName:       in.AgentName,
		AdviceType:      in.AdviceType,
		Content:         in.AdviceContent,
		ConfidenceScore: in.ConfidenceScore,
		Metadata:        in.Metadata,
	}
	if err := h.store.SaveAdvice(ctx, a); err != nil {
		return nil, notFound(err, "saving advice", in.CustomerID)
	}

	return ok(map[string]any{"advice_id": a.ID})
}

type adviceHistoryInput struct {
	CustomerID int64  `json:"customer_id"`
	AgentName  string `json:"agent_name"`
	AdviceType string `json:"advice_type"`
	Limit      int    `json:"limit"`
}

func (h *financeHandlers) GetAdviceHistory(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in adviceHistoryInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	if _, err := h.store.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, notFound(err, "getting customer", in.CustomerID)
	}

	records, err := h.store.ListAdvice(ctx, store.AdviceFilter{
		CustomerID: in.CustomerID,
		AgentName:  in.AgentName,
		AdviceType: in.AdviceType,
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing advice: %w", err)
	}

	views := make([]adviceView, len(records))
	for i, a := range records {
		views[i] = viewAdvice(a)
	}
	return ok(map[string]any{"advice_history": views, "count": len(views)})
}

type logInteractionInput struct {
	SessionID       string         `json:"session_id"`
	CustomerID      *int64         `json:"customer_id"`
	FromAgent       string         `json:"from_agent"`
	ToAgent         string         `json:"to_agent"`
	InteractionType string         `json:"interaction_type"`
	MessageContent  string         `json:"message_content"`
	ContextData     map[string]any `json:"context_data"`
}

func (h *financeHandlers) LogInteraction(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in logInteractionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.SessionID) == "" {
		return nil, packs.Failuref("session_id must not be empty")
	}

	entry := &store.Interaction{
		SessionID:      in.SessionID,
		CustomerID:     in.CustomerID,
		FromAgent:      in.FromAgent,
		ToAgent:        in.ToAgent,
		Type:           in.InteractionType,
		MessageContent: in.MessageContent,
		ContextData:    in.ContextData,
	}
	if err := h.store.LogInteraction(ctx, entry); err != nil {
		var id int64
		if in.CustomerID != nil {
			id = *in.CustomerID
		}
		return nil, notFound(err, "logging interaction", id)
	}

	return ok(map[string]any{"interaction_id": entry.ID})
}

type categoriesInput struct {
	IncomeOnly bool `json:"income_only"`
}

type categoryView struct {
	CategoryName   string `json:"category_name"`
	ParentCategory string `json:"parent_category,omitempty"`
	Description    string `json:"description,omitempty"`
	IsIncome       bool   `json:"is_income"`
}

func (h *financeHandlers) GetCategories(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in categoriesInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	categories, err := h.store.ListCategories(ctx, in.IncomeOnly)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	views := make([]categoryView, len(categories))
	for i, c := range categories {
		views[i] = categoryView{
			CategoryName:   c.Name,
			ParentCategory: c.ParentCategory,
			Description:    c.Description,
			IsIncome:       c.IsIncome,
		}
	}
	return ok(map[string]any{"categories": views, "count": len(views)})
}
