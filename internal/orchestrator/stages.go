// ABOUTME: The three advisory stages and the outputs they record in the run context.
// ABOUTME: Each stage reads catalog data, calls the generator once, and returns advice to persist.

package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/2389/finmcp/internal/llm"
)

const (
	spendingSystemPrompt = "You are a spending analyst. Explain the customer's income and spending pattern in plain language and point out the categories worth reviewing."
	goalsSystemPrompt    = "You are a goal planner. Explain which savings goals are achievable with the customer's monthly capacity and what to change for the rest."
	adviceSystemPrompt   = "You are a financial advisor. Combine the analysis into a short, prioritized action plan."
)

// fullDataTransactions is the transaction count at which spending data counts as complete.
const fullDataTransactions = 50

// CategoryShare is an expense category and its share of total expenses.
type CategoryShare struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Share    float64 `json:"share"`
}

// SpendingOutput is recorded by the spending_analysis stage.
type SpendingOutput struct {
	CustomerName       string          `json:"customer_name"`
	PeriodMonths       int             `json:"period_months,omitempty"`
	TransactionCount   int             `json:"transaction_count"`
	MonthsCovered      int             `json:"months_covered"`
	TotalIncome        float64         `json:"total_income"`
	TotalExpenses      float64         `json:"total_expenses"`
	AvgMonthlyIncome   float64         `json:"avg_monthly_income"`
	AvgMonthlyExpenses float64         `json:"avg_monthly_expenses"`
	MonthlyCapacity    float64         `json:"monthly_capacity"`
	SavingsRate        float64         `json:"savings_rate"`
	TopCategories      []CategoryShare `json:"top_categories"`
	DataQuality        float64         `json:"data_quality"`
	Narrative          string          `json:"narrative"`
	Confidence         float64         `json:"confidence"`
}

// GoalsOutput is recorded by the goal_feasibility stage.
type GoalsOutput struct {
	MonthlyCapacity      float64          `json:"monthly_capacity"`
	DefaultsApplied      bool             `json:"defaults_applied"`
	Goals                []GoalAssessment `json:"goals"`
	TotalRequiredMonthly float64          `json:"total_required_monthly"`
	UnallocatedMonthly   float64          `json:"unallocated_monthly"`
	Narrative            string           `json:"narrative"`
	Confidence           float64          `json:"confidence"`
}

// AdviceOutput is recorded by the advice_synthesis stage.
type AdviceOutput struct {
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
	Completeness    float64  `json:"completeness"`
	DefaultsApplied bool     `json:"defaults_applied"`
	Confidence      float64  `json:"confidence"`
}

type customerProfileResult struct {
	Customer struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"customer"`
}

type spendingSummaryResult struct {
	TransactionCount int `json:"transaction_count"`
	Categories       []struct {
		Category        string  `json:"category"`
		TransactionType string  `json:"transaction_type"`
		Total           float64 `json:"total"`
	} `json:"categories"`
	MonthlySummary []struct {
		Month string `json:"month"`
	} `json:"monthly_summary"`
	Totals struct {
		Income             float64 `json:"income"`
		Expenses           float64 `json:"expenses"`
		AvgMonthlyIncome   float64 `json:"avg_monthly_income"`
		AvgMonthlyExpenses float64 `json:"avg_monthly_expenses"`
	} `json:"totals"`
}

type goalsResult struct {
	Goals []GoalInput `json:"goals"`
}

func (o *Orchestrator) runSpending(ctx context.Context, rs *runState) (*stageResult, error) {
	var profile customerProfileResult
	if err := o.callTool(ctx, rs.stage, "get_customer_profile", map[string]any{"customer_id": rs.customerID}, &profile); err != nil {
		return nil, err
	}

	args := map[string]any{"customer_id": rs.customerID}
	if o.analysisMonths > 0 {
		args["months"] = o.analysisMonths
	}
	var summary spendingSummaryResult
	if err := o.callTool(ctx, rs.stage, "get_spending_summary", args, &summary); err != nil {
		return nil, err
	}

	t := summary.Totals
	out := &SpendingOutput{
		CustomerName:       profile.Customer.Name,
		PeriodMonths:       o.analysisMonths,
		TransactionCount:   summary.TransactionCount,
		MonthsCovered:      len(summary.MonthlySummary),
		TotalIncome:        t.Income,
		TotalExpenses:      t.Expenses,
		AvgMonthlyIncome:   t.AvgMonthlyIncome,
		AvgMonthlyExpenses: t.AvgMonthlyExpenses,
		MonthlyCapacity:    round2(math.Max(t.AvgMonthlyIncome-t.AvgMonthlyExpenses, 0)),
		DataQuality:        math.Min(1, float64(summary.TransactionCount)/fullDataTransactions),
	}
	if t.AvgMonthlyIncome > 0 {
		out.SavingsRate = round2(out.MonthlyCapacity / t.AvgMonthlyIncome)
	}
	for _, c := range summary.Categories {
		if c.TransactionType != "expense" || len(out.TopCategories) == 3 {
			continue
		}
		share := 0.0
		if t.Expenses > 0 {
			share = round2(c.Total / t.Expenses)
		}
		out.TopCategories = append(out.TopCategories, CategoryShare{Category: c.Category, Total: c.Total, Share: share})
	}

	top := make([]string, len(out.TopCategories))
	for i, c := range out.TopCategories {
		top[i] = fmt.Sprintf("%s (%.0f%%)", c.Category, c.Share*100)
	}
	facts := map[string]any{
		"customer":             out.CustomerName,
		"transactions":         out.TransactionCount,
		"avg_monthly_income":   out.AvgMonthlyIncome,
		"avg_monthly_expenses": out.AvgMonthlyExpenses,
		"monthly_capacity":     out.MonthlyCapacity,
		"savings_rate_percent": out.SavingsRate * 100,
		"top_expenses":         top,
	}

	completion, err := o.generate(ctx, llm.Prompt{
		Stage:  StageSpending,
		System: spendingSystemPrompt,
		User:   renderFacts("Analyze this customer's spending.", facts),
		Facts:  facts,
	})
	if err != nil {
		return nil, err
	}

	out.Narrative = completion.Text
	out.Confidence = llm.Clamp(0.6*out.DataQuality + 0.4*completion.Confidence)

	return &stageResult{
		output:     out,
		content:    completion.Text,
		confidence: out.Confidence,
		metadata: map[string]any{
			"monthly_capacity":     out.MonthlyCapacity,
			"avg_monthly_income":   out.AvgMonthlyIncome,
			"avg_monthly_expenses": out.AvgMonthlyExpenses,
			"savings_rate":         out.SavingsRate,
			"transaction_count":    out.TransactionCount,
			"top_categories":       out.TopCategories,
		},
		summary: fmt.Sprintf("spending analysis complete: monthly capacity %.2f", out.MonthlyCapacity),
	}, nil
}

func (o *Orchestrator) runGoals(ctx context.Context, rs *runState) (*stageResult, error) {
	out := &GoalsOutput{}
	spending, ok := rs.rc.Spending()
	if ok {
		out.MonthlyCapacity = spending.MonthlyCapacity
	} else {
		out.DefaultsApplied = true
		o.logger.Info("no spending analysis available, assuming zero capacity", "run_id", rs.runID)
	}

	var goals goalsResult
	if err := o.callTool(ctx, rs.stage, "get_financial_goals", map[string]any{
		"customer_id": rs.customerID,
		"status":      "active",
	}, &goals); err != nil {
		return nil, err
	}

	out.Goals = assessGoals(goals.Goals, out.MonthlyCapacity, o.now())
	allocated := 0.0
	verdicts := make([]string, len(out.Goals))
	for i, g := range out.Goals {
		out.TotalRequiredMonthly += g.RequiredMonthly
		allocated += g.AllocatedMonthly
		verdicts[i] = fmt.Sprintf("%s: %s", g.Name, strings.ReplaceAll(g.Feasibility, "_", " "))
	}
	out.TotalRequiredMonthly = round2(out.TotalRequiredMonthly)
	out.UnallocatedMonthly = round2(math.Max(out.MonthlyCapacity-allocated, 0))

	facts := map[string]any{
		"monthly_capacity":       out.MonthlyCapacity,
		"active_goals":           len(out.Goals),
		"total_required_monthly": out.TotalRequiredMonthly,
		"unallocated_monthly":    out.UnallocatedMonthly,
		"verdicts":               verdicts,
	}
	completion, err := o.generate(ctx, llm.Prompt{
		Stage:  StageGoals,
		System: goalsSystemPrompt,
		User:   renderFacts("Assess these savings goals.", facts),
		Facts:  facts,
	})
	if err != nil {
		return nil, err
	}

	dataFactor := 1.0
	if out.DefaultsApplied {
		dataFactor = 0.5
	}
	out.Narrative = completion.Text
	out.Confidence = llm.Clamp(0.5*completion.Confidence + 0.5*dataFactor)

	return &stageResult{
		output:     out,
		content:    completion.Text,
		confidence: out.Confidence,
		metadata: map[string]any{
			"monthly_capacity":       out.MonthlyCapacity,
			"defaults_applied":       out.DefaultsApplied,
			"total_required_monthly": out.TotalRequiredMonthly,
			"goals":                  out.Goals,
		},
		summary: fmt.Sprintf("goal feasibility complete: %d active goals assessed", len(out.Goals)),
	}, nil
}

func (o *Orchestrator) runAdvice(ctx context.Context, rs *runState) (*stageResult, error) {
	spending, hasSpending := rs.rc.Spending()
	goals, hasGoals := rs.rc.Goals()

	present := 0
	if hasSpending {
		present++
	}
	if hasGoals {
		present++
	}
	out := &AdviceOutput{
		Recommendations: recommend(spending, goals),
		Completeness:    float64(present) / 2,
		DefaultsApplied: present < 2,
	}

	facts := map[string]any{
		"recommendations": out.Recommendations,
		"completeness":    out.Completeness,
	}
	if hasSpending {
		facts["monthly_capacity"] = spending.MonthlyCapacity
	}
	completion, err := o.generate(ctx, llm.Prompt{
		Stage:  StageAdvice,
		System: adviceSystemPrompt,
		User:   renderFacts("Write the final action plan.", facts),
		Facts:  facts,
	})
	if err != nil {
		return nil, err
	}

	out.Summary = completion.Text
	out.Confidence = llm.Clamp(0.6*completion.Confidence + 0.4*out.Completeness)

	return &stageResult{
		output:     out,
		content:    completion.Text,
		confidence: out.Confidence,
		metadata: map[string]any{
			"recommendations":  out.Recommendations,
			"completeness":     out.Completeness,
			"defaults_applied": out.DefaultsApplied,
		},
		summary: fmt.Sprintf("advice synthesis complete: %d recommendations", len(out.Recommendations)),
	}, nil
}

// recommend derives the action list from whatever earlier stages produced.
// Nil inputs mean the stage output is absent.
func recommend(spending *SpendingOutput, goals *GoalsOutput) []string {
	var recs []string

	if spending == nil {
		recs = append(recs, "Record income and expenses so monthly savings capacity can be measured.")
	} else {
		switch {
		case spending.MonthlyCapacity <= 0:
			recs = append(recs, "Expenses meet or exceed income. Reduce discretionary spending before adding new goals.")
		case spending.SavingsRate < 0.2:
			recs = append(recs, fmt.Sprintf("You save %.0f%% of income. Work toward 20%%.", spending.SavingsRate*100))
		}
		if len(spending.TopCategories) > 0 && spending.TopCategories[0].Share >= 0.3 {
			c := spending.TopCategories[0]
			recs = append(recs, fmt.Sprintf("%s is %.0f%% of expenses. Review it first.", c.Category, c.Share*100))
		}
		if spending.AvgMonthlyExpenses > 0 {
			recs = append(recs, fmt.Sprintf("Keep an emergency fund of at least %.2f, three months of expenses.", round2(3*spending.AvgMonthlyExpenses)))
		}
	}

	if goals == nil || len(goals.Goals) == 0 {
		return append(recs, "Set at least one savings goal with a target date.")
	}

	onTrack := true
	allocated := 0.0
	for _, g := range goals.Goals {
		allocated += g.AllocatedMonthly
		switch g.Feasibility {
		case FeasibilityUnrealistic:
			onTrack = false
			recs = append(recs, fmt.Sprintf("%s needs %.2f a month. Extend the target date or lower the target.", g.Name, g.RequiredMonthly))
		case FeasibilityChallenging:
			onTrack = false
			recs = append(recs, fmt.Sprintf("%s is challenging at %.2f a month. Consider a later target date.", g.Name, g.RequiredMonthly))
		case FeasibilityOpenEnded:
			recs = append(recs, fmt.Sprintf("Add a target date to %s so progress can be planned.", g.Name))
		}
	}
	if onTrack && allocated > 0 {
		recs = append(recs, fmt.Sprintf("Automate a monthly transfer of %.2f toward your goals.", round2(allocated)))
	}
	return recs
}

// renderFacts builds the user prompt from an instruction and its facts.
func renderFacts(instruction string, facts map[string]any) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n")
	for _, k := range sortedKeys(facts) {
		fmt.Fprintf(&b, "%s: %v\n", k, facts[k])
	}
	return strings.TrimSpace(b.String())
}
