// ABOUTME: Goal tool handlers for creating, listing, and updating financial goals.
// ABOUTME: Status changes follow the store's transition rules.

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

type createGoalInput struct {
	CustomerID    int64   `json:"customer_id"`
	GoalName      string  `json:"goal_name"`
	GoalType      string  `json:"goal_type"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	TargetDate    string  `json:"target_date"`
	Priority      string  `json:"priority"`
	Description   string  `json:"description"`
}

func (h *financeHandlers) CreateGoal(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in createGoalInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.GoalName) == "" {
		return nil, packs.Failuref("goal_name must not be empty")
	}
	target := store.ToCents(in.TargetAmount)
	if target <= 0 {
		return nil, packs.Failuref("target_amount must be positive")
	}
	if err := checkDate("target_date", in.TargetDate); err != nil {
		return nil, err
	}

	g := &store.Goal{
		CustomerID:    in.CustomerID,
		Name:          strings.TrimSpace(in.GoalName),
		Type:          store.GoalType(in.GoalType),
		TargetAmount:  target,
		CurrentAmount: store.ToCents(in.CurrentAmount),
		TargetDate:    in.TargetDate,
		Priority:      store.GoalPriority(in.Priority),
		Description:   in.Description,
	}
	if err := h.store.CreateGoal(ctx, g); err != nil {
		return nil, notFound(err, "creating goal", in.CustomerID)
	}

	return ok(map[string]any{"goal": viewGoal(g)})
}

type getGoalsInput struct {
	CustomerID int64  `json:"customer_id"`
	Status     string `json:"status"`
}

func (h *financeHandlers) GetGoals(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in getGoalsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	if _, err := h.store.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, notFound(err, "getting customer", in.CustomerID)
	}

	goals, err := h.store.ListGoals(ctx, in.CustomerID, store.GoalStatus(in.Status))
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}

	views := make([]goalView, len(goals))
	for i, g := range goals {
		views[i] = viewGoal(g)
	}
	return ok(map[string]any{"goals": views, "count": len(views)})
}

type updateGoalInput struct {
	GoalID        int64   `json:"goal_id"`
	CurrentAmount float64 `json:"current_amount"`
	Status        string  `json:"status"`
}

func (h *financeHandlers) UpdateGoalProgress(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in updateGoalInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	progress := store.GoalProgress{
		GoalID:        in.GoalID,
		CurrentAmount: store.ToCents(in.CurrentAmount),
	}
	if in.Status != "" {
		status := store.GoalStatus(in.Status)
		progress.Status = &status
	}

	g, err := h.store.UpdateGoalProgress(ctx, progress)
	switch {
	case errors.Is(err, store.ErrGoalNotFound):
		return nil, packs.Failuref("goal %d not found", in.GoalID)
	case errors.Is(err, store.ErrInvalidTransition):
		return nil, packs.Failuref("cannot update goal %d: %v", in.GoalID, err)
	case err != nil:
		return nil, fmt.Errorf("updating goal: %w", err)
	}

	return ok(map[string]any{
		"goal":      viewGoal(g),
		"completed": g.Status == store.GoalCompleted,
	})
}
