// ABOUTME: Transaction tool handlers for recording, listing, and summarizing activity.
// ABOUTME: Absent month or date filters mean all time.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

type addTransactionInput struct {
	CustomerID      int64   `json:"customer_id"`
	Amount          float64 `json:"amount"`
	Category        string  `json:"category"`
	Subcategory     string  `json:"subcategory"`
	Description     string  `json:"description"`
	TransactionDate string  `json:"transaction_date"`
	TransactionType string  `json:"transaction_type"`
	PaymentMethod   string  `json:"payment_method"`
}

func (h *financeHandlers) AddTransaction(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in addTransactionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	amount := store.ToCents(in.Amount)
	if amount <= 0 {
		return nil, packs.Failuref("amount must be positive")
	}
	if in.TransactionDate == "" {
		return nil, packs.Failuref("transaction_date must be a date in YYYY-MM-DD format")
	}
	if err := checkDate("transaction_date", in.TransactionDate); err != nil {
		return nil, err
	}
	if in.Category == "" {
		return nil, packs.Failuref("category must not be empty")
	}

	t := &store.Transaction{
		CustomerID:    in.CustomerID,
		Amount:        amount,
		Category:      in.Category,
		Subcategory:   in.Subcategory,
		Description:   in.Description,
		Date:          in.TransactionDate,
		Type:          store.TransactionType(in.TransactionType),
		PaymentMethod: in.PaymentMethod,
	}
	if err := h.store.AddTransaction(ctx, t); err != nil {
		return nil, notFound(err, "adding transaction", in.CustomerID)
	}

	return ok(map[string]any{"transaction": viewTransaction(t)})
}

type getTransactionsInput struct {
	CustomerID      int64  `json:"customer_id"`
	Months          int    `json:"months"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Category        string `json:"category"`
	TransactionType string `json:"transaction_type"`
	Limit           int    `json:"limit"`
}

func (h *financeHandlers) GetTransactions(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in getTransactionsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if err := checkDate("start_date", in.StartDate); err != nil {
		return nil, err
	}
	if err := checkDate("end_date", in.EndDate); err != nil {
		return nil, err
	}
	if in.StartDate != "" && in.EndDate != "" && in.StartDate > in.EndDate {
		return nil, packs.Failuref("start_date must not be after end_date")
	}

	if _, err := h.store.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, notFound(err, "getting customer", in.CustomerID)
	}

	filter := store.TransactionFilter{
		CustomerID: in.CustomerID,
		Category:   in.Category,
		Type:       store.TransactionType(in.TransactionType),
		Limit:      in.Limit,
	}
	// An explicit date range takes precedence over months.
	if in.StartDate != "" || in.EndDate != "" {
		filter.Since = in.StartDate
		filter.Until = in.EndDate
	} else {
		filter.Since = store.SinceMonths(h.now(), in.Months)
	}

	txns, err := h.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	views := make([]transactionView, len(txns))
	for i, t := range txns {
		views[i] = viewTransaction(t)
	}
	return ok(map[string]any{"transactions": views, "count": len(views)})
}

type spendingSummaryInput struct {
	CustomerID int64 `json:"customer_id"`
	Months     *int  `json:"months"`
}

type categoryTotalView struct {
	Category        string  `json:"category"`
	TransactionType string  `json:"transaction_type"`
	Total           float64 `json:"total"`
	Count           int     `json:"transaction_count"`
}

type monthTotalView struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

type totalsView struct {
	Income             float64 `json:"income"`
	Expenses           float64 `json:"expenses"`
	Net                float64 `json:"net"`
	AvgMonthlyIncome   float64 `json:"avg_monthly_income"`
	AvgMonthlyExpenses float64 `json:"avg_monthly_expenses"`
}

func (h *financeHandlers) GetSpendingSummary(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in spendingSummaryInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	if _, err := h.store.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, notFound(err, "getting customer", in.CustomerID)
	}

	var periodMonths any // null means all time
	since := ""
	if in.Months != nil && *in.Months > 0 {
		periodMonths = *in.Months
		since = store.SinceMonths(h.now(), *in.Months)
	}

	summary, err := h.store.SpendingSummary(ctx, in.CustomerID, since)
	if err != nil {
		return nil, fmt.Errorf("summarizing spending: %w", err)
	}

	fields := viewSpending(summary)
	fields["customer_id"] = in.CustomerID
	fields["period_months"] = periodMonths
	fields["since"] = since
	return ok(fields)
}

// viewSpending renders a summary's categories, months, and totals.
func viewSpending(summary *store.SpendingSummary) map[string]any {
	categories := make([]categoryTotalView, len(summary.Categories))
	for i, c := range summary.Categories {
		categories[i] = categoryTotalView{
			Category:        c.Category,
			TransactionType: string(c.Type),
			Total:           c.Total.Float64(),
			Count:           c.Count,
		}
	}
	months := make([]monthTotalView, len(summary.Months))
	for i, m := range summary.Months {
		months[i] = monthTotalView{
			Month:    m.Month,
			Income:   m.Income.Float64(),
			Expenses: m.Expenses.Float64(),
			Net:      (m.Income - m.Expenses).Float64(),
		}
	}
	totals := summary.Totals()

	return map[string]any{
		"transaction_count": summary.TransactionCount,
		"categories":        categories,
		"monthly_summary":   months,
		"totals": totalsView{
			Income:             totals.Income.Float64(),
			Expenses:           totals.Expenses.Float64(),
			Net:                totals.Net().Float64(),
			AvgMonthlyIncome:   totals.AvgMonthlyIncome,
			AvgMonthlyExpenses: totals.AvgMonthlyExpenses,
		},
	}
}
