// Package builtins provides the finance tool pack.
//
// # Overview
//
// Built-in tools execute in-process against a store.FinanceStore. The pack is
// registered once at startup and served unchanged for the life of the process.
//
// # Tool Pack
//
// Finance Pack (builtin:finance), in catalog order:
//
//   - get_customer_profile: Read a customer
//   - create_customer: Create a customer
//   - add_transaction: Record an income or expense
//   - get_transactions_by_customer: List transactions with optional filters
//   - get_spending_summary: Totals by category and month
//   - create_financial_goal: Create a goal
//   - get_financial_goals: List goals, optionally by status
//   - update_goal_progress: Set progress and optionally status
//   - save_advice: Append an advice record
//   - get_advice_history: List advice records
//   - log_agent_interaction: Append an interaction log entry
//   - get_spending_categories: List the fixed categories
//   - update_customer_profile: Correct profile fields in place
//   - get_customer_context: Profile, recent activity, and summary in one read
//
// # Registration
//
//	registry.RegisterBuiltinPack(builtins.FinancePack(store))
//
// # Results
//
// Every successful result is a JSON object with "success": true. Amounts are
// reported in currency units even though the store keeps integer cents.
//
// Rejected operations (unknown customer or goal, malformed date, non-positive
// amount, disallowed status change, duplicate email) return a *packs.ToolFailure
// whose message is safe to show to the caller. Store failures are returned as
// ordinary errors and never reach the caller verbatim.
package builtins
