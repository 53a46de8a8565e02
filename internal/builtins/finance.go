// ABOUTME: Finance pack exposes customer, transaction, goal, and advice records as tools.
// ABOUTME: Declares the tool catalog in its public order and shared response views.

package builtins

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

// FinancePackID identifies the finance pack in the registry.
const FinancePackID = "builtin:finance"

// FinancePack creates the finance pack backed by the given store.
func FinancePack(s store.FinanceStore) *packs.BuiltinPack {
	return newFinancePack(s, time.Now)
}

func newFinancePack(s store.FinanceStore, now func() time.Time) *packs.BuiltinPack {
	h := &financeHandlers{store: s, now: now}
	return &packs.BuiltinPack{
		ID: FinancePackID,
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:            "get_customer_profile",
					Description:     "Get a customer's profile by ID",
					InputSchemaJSON: `{"type":"object","properties":{"customer_id":{"type":"integer","description":"Customer ID"}},"required":["customer_id"]}`,
				},
				Handler: h.GetCustomerProfile,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "create_customer",
					Description: "Create a new customer",
					InputSchemaJSON: `{"type":"object","properties":{
						"name":{"type":"string"},
						"email":{"type":"string"},
						"phone":{"type":"string"},
						"date_of_birth":{"type":"string","format":"date","description":"YYYY-MM-DD"}
					},"required":["name","email"]}`,
				},
				Handler: h.CreateCustomer,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "add_transaction",
					Description: "Record an income or expense transaction",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"amount":{"type":"number","maximum":10000000000000,"description":"Positive amount; the sign comes from transaction_type"},
						"category":{"type":"string"},
						"subcategory":{"type":"string"},
						"description":{"type":"string"},
						"transaction_date":{"type":"string","format":"date","description":"YYYY-MM-DD"},
						"transaction_type":{"type":"string","enum":["income","expense"]},
						"payment_method":{"type":"string"}
					},"required":["customer_id","amount","category","transaction_date","transaction_type"]}`,
				},
				Handler: h.AddTransaction,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "get_transactions_by_customer",
					Description: "List a customer's transactions, newest first, with optional filters",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"months":{"type":"integer","minimum":0,"description":"Limit to the last N calendar months; omit for all time"},
						"start_date":{"type":"string","format":"date"},
						"end_date":{"type":"string","format":"date"},
						"category":{"type":"string"},
						"transaction_type":{"type":"string","enum":["income","expense"]},
						"limit":{"type":"integer","minimum":1,"maximum":1000}
					},"required":["customer_id"]}`,
				},
				Handler: h.GetTransactions,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "get_spending_summary",
					Description: "Summarize a customer's income and expenses by category and month",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"months":{"type":"integer","minimum":0,"description":"Limit to the last N calendar months; omit for all time"}
					},"required":["customer_id"]}`,
				},
				Handler: h.GetSpendingSummary,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "create_financial_goal",
					Description: "Create a financial goal for a customer",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"goal_name":{"type":"string"},
						"goal_type":{"type":"string","enum":["savings","investment","debt_payoff","purchase"]},
						"target_amount":{"type":"number","minimum":0,"maximum":10000000000000},
						"current_amount":{"type":"number","minimum":0,"maximum":10000000000000},
						"target_date":{"type":"string","format":"date"},
						"priority":{"type":"string","enum":["low","medium","high"]},
						"description":{"type":"string"}
					},"required":["customer_id","goal_name","goal_type","target_amount"]}`,
				},
				Handler: h.CreateGoal,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "get_financial_goals",
					Description: "List a customer's goals, optionally filtered by status",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"status":{"type":"string","enum":["active","completed","paused","cancelled"]}
					},"required":["customer_id"]}`,
				},
				Handler: h.GetGoals,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "update_goal_progress",
					Description: "Set a goal's current amount and optionally its status",
					InputSchemaJSON: `{"type":"object","properties":{
						"goal_id":{"type":"integer"},
						"current_amount":{"type":"number","minimum":0,"maximum":10000000000000},
						"status":{"type":"string","enum":["active","completed","paused","cancelled"]}
					},"required":["goal_id","current_amount"]}`,
				},
				Handler: h.UpdateGoalProgress,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "save_advice",
					Description: "Append an advice record for a customer",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"agent_name":{"type":"string"},
						"advice_type":{"type":"string"},
						"advice_content":{"type":"string"},
						"confidence_score":{"type":"number","minimum":0,"maximum":1},
						"metadata":{"type":"object"}
					},"required":["customer_id","agent_name","advice_type","advice_content"]}`,
				},
				Handler: h.SaveAdvice,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "get_advice_history",
					Description: "List a customer's advice records, newest first",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"agent_name":{"type":"string"},
						"advice_type":{"type":"string"},
						"limit":{"type":"integer","minimum":1,"maximum":1000}
					},"required":["customer_id"]}`,
				},
				Handler: h.GetAdviceHistory,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "log_agent_interaction",
					Description: "Append an entry to the agent interaction log",
					InputSchemaJSON: `{"type":"object","properties":{
						"session_id":{"type":"string"},
						"customer_id":{"type":"integer"},
						"from_agent":{"type":"string"},
						"to_agent":{"type":"string"},
						"interaction_type":{"type":"string"},
						"message_content":{"type":"string"},
						"context_data":{"type":"object"}
					},"required":["session_id","from_agent","interaction_type","message_content"]}`,
				},
				Handler: h.LogInteraction,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:            "get_spending_categories",
					Description:     "List the fixed income and expense categories",
					InputSchemaJSON: `{"type":"object","properties":{"income_only":{"type":"boolean"}}}`,
				},
				Handler: h.GetCategories,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "update_customer_profile",
					Description: "Correct a customer's profile fields; omitted fields are left unchanged",
					InputSchemaJSON: `{"type":"object","properties":{
						"customer_id":{"type":"integer"},
						"name":{"type":"string"},
						"email":{"type":"string"},
						"phone":{"type":"string"},
						"date_of_birth":{"type":"string","format":"date","description":"YYYY-MM-DD"}
					},"required":["customer_id"]}`,
				},
				Handler: h.UpdateCustomerProfile,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:            "get_customer_context",
					Description:     "Get a customer's profile, recent transactions, active goals, spending summary, and recent advice",
					InputSchemaJSON: `{"type":"object","properties":{"customer_id":{"type":"integer","description":"Customer ID"}},"required":["customer_id"]}`,
				},
				Handler: h.GetCustomerContext,
			},
		},
	}
}

type financeHandlers struct {
	store store.FinanceStore
	now   func() time.Time
}

// decode unmarshals validated tool arguments into a typed input struct.
func decode(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return packs.InvalidParam("", "arguments do not match the tool schema")
	}
	return nil
}

// ok marshals a successful response, adding "success": true.
func ok(fields map[string]any) (json.RawMessage, error) {
	fields["success"] = true
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return out, nil
}

// notFound converts store lookup misses into tool failures and wraps everything else.
func notFound(err error, op string, customerID int64) error {
	if errors.Is(err, store.ErrCustomerNotFound) {
		return packs.Failuref("customer %d not found", customerID)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func checkDate(field, value string) error {
	if value != "" && !store.ValidDate(value) {
		return packs.Failuref("%s must be a date in YYYY-MM-DD format", field)
	}
	return nil
}

// Response views. Amounts are reported in currency units.

type customerView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func viewCustomer(c *store.Customer) customerView {
	return customerView{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		DateOfBirth: c.DateOfBirth,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

type transactionView struct {
	ID              int64   `json:"id"`
	CustomerID      int64   `json:"customer_id"`
	Amount          float64 `json:"amount"`
	Category        string  `json:"category"`
	Subcategory     string  `json:"subcategory,omitempty"`
	Description     string  `json:"description,omitempty"`
	TransactionDate string  `json:"transaction_date"`
	TransactionType string  `json:"transaction_type"`
	PaymentMethod   string  `json:"payment_method,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func viewTransaction(t *store.Transaction) transactionView {
	return transactionView{
		ID:              t.ID,
		CustomerID:      t.CustomerID,
		Amount:          t.Amount.Float64(),
		Category:        t.Category,
		Subcategory:     t.Subcategory,
		Description:     t.Description,
		TransactionDate: t.Date,
		TransactionType: string(t.Type),
		PaymentMethod:   t.PaymentMethod,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
	}
}

type goalView struct {
	ID                 int64   `json:"id"`
	CustomerID         int64   `json:"customer_id"`
	GoalName           string  `json:"goal_name"`
	GoalType           string  `json:"goal_type"`
	TargetAmount       float64 `json:"target_amount"`
	CurrentAmount      float64 `json:"current_amount"`
	TargetDate         string  `json:"target_date,omitempty"`
	Priority           string  `json:"priority"`
	Status             string  `json:"status"`
	Description        string  `json:"description,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func viewGoal(g *store.Goal) goalView {
	return goalView{
		ID:                 g.ID,
		CustomerID:         g.CustomerID,
		GoalName:           g.Name,
		GoalType:           string(g.Type),
		TargetAmount:       g.TargetAmount.Float64(),
		CurrentAmount:      g.CurrentAmount.Float64(),
		TargetDate:         g.TargetDate,
		Priority:           string(g.Priority),
		Status:             string(g.Status),
		Description:        g.Description,
		ProgressPercentage: g.ProgressPercent(),
		CreatedAt:          g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          g.UpdatedAt.Format(time.RFC3339),
	}
}

type adviceView struct {
	ID              int64          `json:"id"`
	CustomerID      int64          `json:"customer_id"`
	AgentName       string         `json:"agent_name"`
	AdviceType      string         `json:"advice_type"`
	AdviceContent   string         `json:"advice_content"`
	ConfidenceScore *float64       `json:"confidence_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

func viewAdvice(a *store.Advice) adviceView {
	return adviceView{
		ID:              a.ID,
		CustomerID:      a.CustomerID,
		AgentName:       a.AgentName,
		AdviceType:      a.AdviceType,
		AdviceContent:   a.Content,
		ConfidenceScore: a.ConfidenceScore,
		Metadata:        a.Metadata,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
}
