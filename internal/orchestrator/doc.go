// Package orchestrator runs the advisory pipeline for one customer.
//
// # Stages
//
// Stages run strictly in this order, each under its own deadline:
//
//  1. spending_analysis: average monthly income, expenses, and capacity
//  2. goal_feasibility: required monthly savings per active goal, rated against capacity
//  3. advice_synthesis: a prioritized recommendation list
//
// Every stage reads catalog data through the tool router, calls the text
// generator once, and saves exactly one advice record with save_advice before
// the next stage begins. Its typed output is then appended to the RunContext,
// where later stages can read it. A stage whose input is missing proceeds with
// conservative defaults (zero monthly capacity).
//
// # Failures
//
// A failed stage is reported with its reason and every later stage is skipped.
// Nothing is retried. Run returns an error wrapping ErrRunFailed only when the
// first stage failed; otherwise the Report carries the outcome.
package orchestrator
