// ABOUTME: Tests for finance pack tool handlers.
// ABOUTME: Uses a real SQLite store for integration testing.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

func TestFinancePackCatalog(t *testing.T) {
	pack := FinancePack(store.NewMockStore())

	want := []string{
		"get_customer_profile",
		"create_customer",
		"add_transaction",
		"get_transactions_by_customer",
		"get_spending_summary",
		"create_financial_goal",
		"get_financial_goals",
		"update_goal_progress",
		"save_advice",
		"get_advice_history",
		"log_agent_interaction",
		"get_spending_categories",
		"update_customer_profile",
		"get_customer_context",
	}
	require.Len(t, pack.Tools, len(want))
	for i, tool := range pack.Tools {
		assert.Equal(t, want[i], tool.Definition.Name)
		assert.NotEmpty(t, tool.Definition.Description)
	}

	// Every schema must pass registry validation.
	registry := packs.NewRegistry(slog.Default())
	require.NoError(t, registry.RegisterBuiltinPack(pack))
}

func TestCustomerProfile(t *testing.T) {
	pack, _ := newTestPack(t)

	resp := call(t, pack, "create_customer", `{"name":"Ada Lovelace","email":"ada@example.com","phone":"555-0100","date_of_birth":"1990-12-10"}`)
	customer := resp["customer"].(map[string]any)
	id := int64(customer["id"].(float64))

	resp = call(t, pack, "get_customer_profile", fmt.Sprintf(`{"customer_id":%d}`, id))
	profile := resp["customer"].(map[string]any)
	assert.Equal(t, "Ada Lovelace", profile["name"])
	assert.Equal(t, "ada@example.com", profile["email"])
	assert.Equal(t, "1990-12-10", profile["date_of_birth"])

	msg := callFailure(t, pack, "get_customer_profile", `{"customer_id":999}`)
	assert.Equal(t, "customer 999 not found", msg)

	msg = callFailure(t, pack, "create_customer", `{"name":"Ada Again","email":"ada@example.com"}`)
	assert.Contains(t, msg, "already exists")

	msg = callFailure(t, pack, "create_customer", `{"name":"Bad Date","email":"b@example.com","date_of_birth":"12/10/1990"}`)
	assert.Contains(t, msg, "YYYY-MM-DD")
}

func TestAmountSchemasAreBounded(t *testing.T) {
	pack := FinancePack(store.NewMockStore())

	bounded := map[string][]string{
		"add_transaction":       {"amount"},
		"create_financial_goal": {"target_amount", "current_amount"},
		"update_goal_progress":  {"current_amount"},
	}
	for _, tool := range pack.Tools {
		fields, ok := bounded[tool.Definition.Name]
		if !ok {
			continue
		}
		schema, err := packs.CompileSchema(tool.Definition.InputSchemaJSON)
		require.NoError(t, err, tool.Definition.Name)
		for _, field := range fields {
			prop := schema.Properties[field]
			require.NotNil(t, prop, "%s.%s", tool.Definition.Name, field)
			require.NotNil(t, prop.Maximum, "%s.%s has no maximum", tool.Definition.Name, field)
			assert.Equal(t, float64(store.MaxAmount), *prop.Maximum)
		}
	}

	// The largest accepted amount still converts to cents without overflow.
	assert.Positive(t, int64(store.ToCents(store.MaxAmount)))
}

func TestUpdateCustomerProfile(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "edit@example.com")
	createCustomer(t, pack, "taken@example.com")

	resp := call(t, pack, "update_customer_profile", fmt.Sprintf(`{"customer_id":%d,"name":"  Edited Name  ","phone":"555-0199"}`, id))
	customer := resp["customer"].(map[string]any)
	assert.Equal(t, "Edited Name", customer["name"])
	assert.Equal(t, "edit@example.com", customer["email"], "omitted fields are kept")
	assert.Equal(t, "555-0199", customer["phone"])

	resp = call(t, pack, "get_customer_profile", fmt.Sprintf(`{"customer_id":%d}`, id))
	assert.Equal(t, "Edited Name", resp["customer"].(map[string]any)["name"])

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fields", `{"customer_id":%d}`, "no profile fields to update"},
		{"blank name", `{"customer_id":%d,"name":"  "}`, "name must not be empty"},
		{"bad email", `{"customer_id":%d,"email":"nope"}`, `email "nope" is not a valid address`},
		{"bad date", `{"customer_id":%d,"date_of_birth":"10/12/1990"}`, "date_of_birth must be a date in YYYY-MM-DD format"},
		{"duplicate email", `{"customer_id":%d,"email":"taken@example.com"}`, "a customer with email taken@example.com already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callFailure(t, pack, "update_customer_profile", fmt.Sprintf(tt.input, id)))
		})
	}

	msg := callFailure(t, pack, "update_customer_profile", `{"customer_id":404,"name":"Ghost"}`)
	assert.Equal(t, "customer 404 not found", msg)
}

func TestGetCustomerContext(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "context@example.com")
	seedTransactions(t, pack, id)
	call(t, pack, "create_financial_goal", fmt.Sprintf(`{"customer_id":%d,"goal_name":"Emergency fund","goal_type":"savings","target_amount":10000}`, id))
	paused := call(t, pack, "create_financial_goal", fmt.Sprintf(`{"customer_id":%d,"goal_name":"Boat","goal_type":"purchase","target_amount":50000}`, id))
	pausedID := int64(paused["goal"].(map[string]any)["id"].(float64))
	call(t, pack, "update_goal_progress", fmt.Sprintf(`{"goal_id":%d,"current_amount":0,"status":"paused"}`, pausedID))
	for i := 0; i < 12; i++ {
		call(t, pack, "save_advice", fmt.Sprintf(`{"customer_id":%d,"agent_name":"advisor","advice_type":"comprehensive_advice","advice_content":"note %d"}`, id, i))
	}

	resp := call(t, pack, "get_customer_context", fmt.Sprintf(`{"customer_id":%d}`, id))
	assert.Equal(t, "context@example.com", resp["customer"].(map[string]any)["email"])
	assert.Len(t, resp["recent_transactions"], 7)

	goals := resp["active_goals"].([]any)
	require.Len(t, goals, 1, "paused goals are excluded")
	assert.Equal(t, "Emergency fund", goals[0].(map[string]any)["goal_name"])

	summary := resp["spending_summary"].(map[string]any)
	assert.Equal(t, 7.0, summary["transaction_count"])
	totals := summary["totals"].(map[string]any)
	assert.Equal(t, 10000.0, totals["income"])
	assert.Equal(t, 6300.0, totals["expenses"])

	advice := resp["recent_advice"].([]any)
	require.Len(t, advice, 10)
	assert.Equal(t, "note 11", advice[0].(map[string]any)["advice_content"], "newest first")

	msg := callFailure(t, pack, "get_customer_context", `{"customer_id":999}`)
	assert.Equal(t, "customer 999 not found", msg)
}

func TestAddTransaction(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "txn@example.com")

	resp := call(t, pack, "add_transaction", fmt.Sprintf(
		`{"customer_id":%d,"amount":42.5,"category":"Food & Dining","subcategory":"Groceries","transaction_date":"2026-03-02","transaction_type":"expense","payment_method":"card"}`, id))
	txn := resp["transaction"].(map[string]any)
	assert.Equal(t, 42.5, txn["amount"])
	assert.Equal(t, "expense", txn["transaction_type"])
	assert.Equal(t, "card", txn["payment_method"])

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"zero amount", `{"customer_id":%d,"amount":0,"category":"x","transaction_date":"2026-03-02","transaction_type":"expense"}`, "amount must be positive"},
		{"negative amount", `{"customer_id":%d,"amount":-5,"category":"x","transaction_date":"2026-03-02","transaction_type":"expense"}`, "amount must be positive"},
		{"bad date", `{"customer_id":%d,"amount":5,"category":"x","transaction_date":"2026-13-40","transaction_type":"expense"}`, "transaction_date must be a date in YYYY-MM-DD format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callFailure(t, pack, "add_transaction", fmt.Sprintf(tt.input, id)))
		})
	}

	msg := callFailure(t, pack, "add_transaction", `{"customer_id":404,"amount":5,"category":"x","transaction_date":"2026-03-02","transaction_type":"income"}`)
	assert.Equal(t, "customer 404 not found", msg)
}

func seedTransactions(t *testing.T, pack *packs.BuiltinPack, id int64) {
	t.Helper()
	rows := []string{
		`{"customer_id":%d,"amount":5000,"category":"Salary","transaction_date":"2026-03-01","transaction_type":"income"}`,
		`{"customer_id":%d,"amount":1800,"category":"Housing","transaction_date":"2026-03-03","transaction_type":"expense"}`,
		`{"customer_id":%d,"amount":1200,"category":"Food & Dining","transaction_date":"2026-03-10","transaction_type":"expense"}`,
		`{"customer_id":%d,"amount":5000,"category":"Salary","transaction_date":"2026-02-01","transaction_type":"income"}`,
		`{"customer_id":%d,"amount":1800,"category":"Housing","transaction_date":"2026-02-03","transaction_type":"expense"}`,
		`{"customer_id":%d,"amount":1200,"category":"Food & Dining","transaction_date":"2026-02-12","transaction_type":"expense"}`,
		`{"customer_id":%d,"amount":300,"category":"Entertainment","transaction_date":"2025-06-20","transaction_type":"expense"}`,
	}
	for _, row := range rows {
		call(t, pack, "add_transaction", fmt.Sprintf(row, id))
	}
}

func TestGetTransactionsFilters(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "filters@example.com")
	seedTransactions(t, pack, id)

	all := call(t, pack, "get_transactions_by_customer", fmt.Sprintf(`{"customer_id":%d}`, id))
	assert.Equal(t, 7.0, all["count"], "absent months means all time")
	first := all["transactions"].([]any)[0].(map[string]any)
	assert.Equal(t, "2026-03-10", first["transaction_date"], "newest first")

	recent := call(t, pack, "get_transactions_by_customer", fmt.Sprintf(`{"customer_id":%d,"months":2}`, id))
	assert.Equal(t, 6.0, recent["count"])

	ranged := call(t, pack, "get_transactions_by_customer", fmt.Sprintf(`{"customer_id":%d,"months":1,"start_date":"2025-01-01","end_date":"2025-12-31"}`, id))
	assert.Equal(t, 1.0, ranged["count"], "date range wins over months")

	income := call(t, pack, "get_transactions_by_customer", fmt.Sprintf(`{"customer_id":%d,"transaction_type":"income","limit":1}`, id))
	assert.Equal(t, 1.0, income["count"])

	msg := callFailure(t, pack, "get_transactions_by_customer", fmt.Sprintf(`{"customer_id":%d,"start_date":"2026-03-01","end_date":"2026-01-01"}`, id))
	assert.Contains(t, msg, "start_date")

	msg = callFailure(t, pack, "get_transactions_by_customer", `{"customer_id":77}`)
	assert.Equal(t, "customer 77 not found", msg)
}

func TestSpendingSummary(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "summary@example.com")
	seedTransactions(t, pack, id)

	input := fmt.Sprintf(`{"customer_id":%d,"months":3}`, id)
	resp := call(t, pack, "get_spending_summary", input)

	assert.Equal(t, 3.0, resp["period_months"])
	totals := resp["totals"].(map[string]any)
	assert.Equal(t, 10000.0, totals["income"])
	assert.Equal(t, 6000.0, totals["expenses"])
	assert.Equal(t, 4000.0, totals["net"])
	assert.Equal(t, 5000.0, totals["avg_monthly_income"])
	assert.Equal(t, 3000.0, totals["avg_monthly_expenses"])

	categories := resp["categories"].([]any)
	require.Len(t, categories, 3)
	assert.Equal(t, "Salary", categories[0].(map[string]any)["category"])
	assert.Equal(t, "Housing", categories[1].(map[string]any)["category"])

	months := resp["monthly_summary"].([]any)
	require.Len(t, months, 2)
	assert.Equal(t, "2026-03", months[0].(map[string]any)["month"])

	allTime := call(t, pack, "get_spending_summary", fmt.Sprintf(`{"customer_id":%d}`, id))
	assert.Nil(t, allTime["period_months"])
	assert.Equal(t, 7.0, allTime["transaction_count"])
}

func TestSpendingSummaryIsIdempotent(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "idem@example.com")
	seedTransactions(t, pack, id)

	handler := findHandler(pack, "get_spending_summary")
	input := json.RawMessage(fmt.Sprintf(`{"customer_id":%d,"months":6}`, id))

	first, err := handler(context.Background(), "tester", input)
	require.NoError(t, err)
	second, err := handler(context.Background(), "tester", input)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, string(first), string(second))
}

func TestGoalRoundTrip(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "goals@example.com")

	resp := call(t, pack, "create_financial_goal", fmt.Sprintf(
		`{"customer_id":%d,"goal_name":"Emergency Fund","goal_type":"savings","target_amount":6000,"current_amount":1200,"target_date":"2027-03-15","priority":"high"}`, id))
	created := resp["goal"].(map[string]any)
	assert.Equal(t, 6000.0, created["target_amount"])
	assert.Equal(t, 1200.0, created["current_amount"])
	assert.Equal(t, "active", created["status"])

	resp = call(t, pack, "get_financial_goals", fmt.Sprintf(`{"customer_id":%d}`, id))
	require.Equal(t, 1.0, resp["count"])
	goal := resp["goals"].([]any)[0].(map[string]any)
	assert.Equal(t, "Emergency Fund", goal["goal_name"])
	assert.Equal(t, 6000.0, goal["target_amount"])
	assert.Equal(t, 1200.0, goal["current_amount"])
	assert.Equal(t, "2027-03-15", goal["target_date"])
	assert.Equal(t, "high", goal["priority"])
	assert.Equal(t, 20.0, goal["progress_percentage"])
}

func TestGetGoalsCompletedFilterIsEmpty(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "nogoals@example.com")
	call(t, pack, "create_financial_goal", fmt.Sprintf(`{"customer_id":%d,"goal_name":"Car","goal_type":"purchase","target_amount":20000}`, id))

	resp := call(t, pack, "get_financial_goals", fmt.Sprintf(`{"customer_id":%d,"status":"completed"}`, id))
	assert.Equal(t, 0.0, resp["count"])
	goals, ok := resp["goals"].([]any)
	require.True(t, ok, "goals must be an empty list, not null")
	assert.Empty(t, goals)
}

func TestUpdateGoalProgress(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "progress@example.com")
	resp := call(t, pack, "create_financial_goal", fmt.Sprintf(`{"customer_id":%d,"goal_name":"Vacation","goal_type":"savings","target_amount":1000}`, id))
	goalID := int64(resp["goal"].(map[string]any)["id"].(float64))

	resp = call(t, pack, "update_goal_progress", fmt.Sprintf(`{"goal_id":%d,"current_amount":400}`, goalID))
	assert.Equal(t, false, resp["completed"])
	assert.Equal(t, 40.0, resp["goal"].(map[string]any)["progress_percentage"])

	resp = call(t, pack, "update_goal_progress", fmt.Sprintf(`{"goal_id":%d,"current_amount":400,"status":"paused"}`, goalID))
	assert.Equal(t, "paused", resp["goal"].(map[string]any)["status"])

	resp = call(t, pack, "update_goal_progress", fmt.Sprintf(`{"goal_id":%d,"current_amount":500,"status":"active"}`, goalID))
	assert.Equal(t, "active", resp["goal"].(map[string]any)["status"])

	resp = call(t, pack, "update_goal_progress", fmt.Sprintf(`{"goal_id":%d,"current_amount":1200}`, goalID))
	assert.Equal(t, true, resp["completed"], "reaching the target auto-completes")
	assert.Equal(t, "completed", resp["goal"].(map[string]any)["status"])

	msg := callFailure(t, pack, "update_goal_progress", fmt.Sprintf(`{"goal_id":%d,"current_amount":100,"status":"active"}`, goalID))
	assert.Contains(t, msg, "invalid goal status transition")

	msg = callFailure(t, pack, "update_goal_progress", `{"goal_id":999,"current_amount":1}`)
	assert.Equal(t, "goal 999 not found", msg)
}

func TestAdviceHistory(t *testing.T) {
	pack, _ := newTestPack(t)
	id := createCustomer(t, pack, "advice@example.com")

	call(t, pack, "save_advice", fmt.Sprintf(`{"customer_id":%d,"agent_name":"spending_analyzer","advice_type":"spending_analysis","advice_content":"Spend less on dining","confidence_score":0.8,"metadata":{"monthly_capacity":2000}}`, id))
	resp := call(t, pack, "save_advice", fmt.Sprintf(`{"customer_id":%d,"agent_name":"advisor","advice_type":"comprehensive_advice","advice_content":"Keep going"}`, id))
	assert.NotZero(t, resp["advice_id"])

	history := call(t, pack, "get_advice_history", fmt.Sprintf(`{"customer_id":%d}`, id))
	require.Equal(t, 2.0, history["count"])
	newest := history["advice_history"].([]any)[0].(map[string]any)
	assert.Equal(t, "advisor", newest["agent_name"])
	assert.Nil(t, newest["confidence_score"])

	filtered := call(t, pack, "get_advice_history", fmt.Sprintf(`{"customer_id":%d,"agent_name":"spending_analyzer"}`, id))
	require.Equal(t, 1.0, filtered["count"])
	record := filtered["advice_history"].([]any)[0].(map[string]any)
	assert.Equal(t, 0.8, record["confidence_score"])
	assert.Equal(t, 2000.0, record["metadata"].(map[string]any)["monthly_capacity"])

	msg := callFailure(t, pack, "save_advice", `{"customer_id":555,"agent_name":"a","advice_type":"b","advice_content":"c"}`)
	assert.Equal(t, "customer 555 not found", msg)

	msg = callFailure(t, pack, "save_advice", fmt.Sprintf(`{"customer_id":%d,"agent_name":"a","advice_type":"b","advice_content":"   "}`, id))
	assert.Equal(t, "advice_content must not be empty", msg)
}

func TestLogInteraction(t *testing.T) {
	pack, s := newTestPack(t)
	id := createCustomer(t, pack, "log@example.com")

	resp := call(t, pack, "log_agent_interaction", fmt.Sprintf(`{"session_id":"s-1","customer_id":%d,"from_agent":"spending_analyzer","to_agent":"goal_planner","interaction_type":"analysis_complete","message_content":"done","context_data":{"stage":"spending_analysis"}}`, id))
	assert.NotZero(t, resp["interaction_id"])

	call(t, pack, "log_agent_interaction", `{"session_id":"s-1","from_agent":"goal_planner","interaction_type":"note","message_content":"no customer"}`)

	entries, err := s.ListInteractions(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "spending_analyzer", entries[0].FromAgent)
	assert.Nil(t, entries[1].CustomerID)

	msg := callFailure(t, pack, "log_agent_interaction", `{"session_id":"s-2","customer_id":321,"from_agent":"a","interaction_type":"b","message_content":"c"}`)
	assert.Equal(t, "customer 321 not found", msg)
}

func TestSpendingCategories(t *testing.T) {
	pack, _ := newTestPack(t)

	all := call(t, pack, "get_spending_categories", `{}`)
	income := call(t, pack, "get_spending_categories", `{"income_only":true}`)

	assert.Greater(t, all["count"].(float64), income["count"].(float64))
	for _, c := range income["categories"].([]any) {
		assert.Equal(t, true, c.(map[string]any)["is_income"])
	}
	assert.Equal(t, float64(len(store.DefaultCategories(false))), all["count"])
}

func TestStoreErrorsAreNotToolFailures(t *testing.T) {
	mock := store.NewMockStore()
	mock.FailWith = errors.New("disk I/O error: /var/lib/finance.db")
	pack := FinancePack(mock)

	_, err := findHandler(pack, "get_spending_categories")(context.Background(), "tester", json.RawMessage(`{}`))
	require.Error(t, err)
	var failure *packs.ToolFailure
	assert.False(t, errors.As(err, &failure), "store failures must surface as internal errors")
}
