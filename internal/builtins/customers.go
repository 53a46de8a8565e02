// ABOUTME: Customer tool handlers for profile lookup, creation, edits, and full context.
// ABOUTME: Unknown customers and duplicate emails are reported as tool failures.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

type customerIDInput struct {
	CustomerID int64 `json:"customer_id"`
}

func (h *financeHandlers) GetCustomerProfile(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in customerIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	c, err := h.store.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, notFound(err, "getting customer", in.CustomerID)
	}

	return ok(map[string]any{"customer": viewCustomer(c)})
}

type createCustomerInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
}

func (h *financeHandlers) CreateCustomer(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in createCustomerInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" {
		return nil, packs.Failuref("name must not be empty")
	}
	if !strings.Contains(email, "@") {
		return nil, packs.Failuref("email %q is not a valid address", in.Email)
	}
	if err := checkDate("date_of_birth", in.DateOfBirth); err != nil {
		return nil, err
	}

	c := &store.Customer{
		Name:        name,
		Email:       email,
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
	}
	if err := h.store.CreateCustomer(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, packs.Failuref("a customer with email %s already exists", email)
		}
		return nil, fmt.Errorf("creating customer: %w", err)
	}

	return ok(map[string]any{"customer": viewCustomer(c)})
}

type updateCustomerInput struct {
	CustomerID  int64   `json:"customer_id"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`
}

func (h *financeHandlers) UpdateCustomerProfile(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in updateCustomerInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	update := store.CustomerUpdate{Phone: in.Phone, DateOfBirth: in.DateOfBirth}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, packs.Failuref("name must not be empty")
		}
		update.Name = &name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if !strings.Contains(email, "@") {
			return nil, packs.Failuref("email %q is not a valid address", *in.Email)
		}
		update.Email = &email
	}
	if in.DateOfBirth != nil {
		if err := checkDate("date_of_birth", *in.DateOfBirth); err != nil {
			return nil, err
		}
	}
	if update.Empty() {
		return nil, packs.Failuref("no profile fields to update")
	}

	c, err := h.store.UpdateCustomer(ctx, in.CustomerID, update)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, packs.Failuref("a customer with email %s already exists", *update.Email)
		}
		return nil, notFound(err, "updating customer", in.CustomerID)
	}

	return ok(map[string]any{"customer": viewCustomer(c)})
}

const (
	contextTransactionLimit = 100
	contextAdviceLimit      = 10
)

// GetCustomerContext returns a customer's profile and recent activity in one
// call.
func (h *financeHandlers) GetCustomerContext(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in customerIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	c, err := h.store.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, notFound(err, "getting customer", in.CustomerID)
	}

	txns, err := h.store.ListTransactions(ctx, store.TransactionFilter{
		CustomerID: in.CustomerID,
		Limit:      contextTransactionLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	goals, err := h.store.ListGoals(ctx, in.CustomerID, store.GoalActive)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	summary, err := h.store.SpendingSummary(ctx, in.CustomerID, "")
	if err != nil {
		return nil, fmt.Errorf("summarizing spending: %w", err)
	}
	advice, err := h.store.ListAdvice(ctx, store.AdviceFilter{
		CustomerID: in.CustomerID,
		Limit:      contextAdviceLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing advice: %w", err)
	}

	txnViews := make([]transactionView, len(txns))
	for i, t := range txns {
		txnViews[i] = viewTransaction(t)
	}
	goalViews := make([]goalView, len(goals))
	for i, g := range goals {
		goalViews[i] = viewGoal(g)
	}
	adviceViews := make([]adviceView, len(advice))
	for i, a := range advice {
		adviceViews[i] = viewAdvice(a)
	}

	return ok(map[string]any{
		"customer":            viewCustomer(c),
		"recent_transactions": txnViews,
		"active_goals":        goalViews,
		"spending_summary":    viewSpending(summary),
		"recent_advice":       adviceViews,
	})
}
