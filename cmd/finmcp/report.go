// ABOUTME: Human-readable rendering of an advisory pipeline report
// ABOUTME: Used by the run command when --json is not given

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/2389/finmcp/internal/orchestrator"
)

func printReport(w io.Writer, report *orchestrator.Report) {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	bold.Fprintf(w, "Advisory run %s\n", report.RunID)
	fmt.Fprintf(w, "  customer: %d\n", report.CustomerID)
	fmt.Fprint(w, "  status:   ")
	statusColor(report.Status).Fprintln(w, report.Status)
	fmt.Fprintln(w)

	for i, st := range report.Stages {
		fmt.Fprintf(w, "  %d. %-18s ", i+1, st.Name)
		statusColor(st.Status).Fprint(w, st.Status)
		switch st.Status {
		case orchestrator.StatusSuccess:
			gray.Fprintf(w, "  advice #%d  confidence %.2f  %s", st.AdviceID, st.Confidence, st.Duration.Round(time.Millisecond))
		default:
			gray.Fprintf(w, "  %s", st.Reason)
		}
		fmt.Fprintln(w)
	}

	if report.Context == nil {
		return
	}

	if spending, ok := report.Context.Spending(); ok {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Spending")
		fmt.Fprintf(w, "  avg monthly income:   %10.2f\n", spending.AvgMonthlyIncome)
		fmt.Fprintf(w, "  avg monthly expenses: %10.2f\n", spending.AvgMonthlyExpenses)
		fmt.Fprintf(w, "  monthly capacity:     %10.2f\n", spending.MonthlyCapacity)
		for _, c := range spending.TopCategories {
			fmt.Fprintf(w, "  %-22s%10.2f  (%.0f%%)\n", c.Category+":", c.Total, c.Share*100)
		}
	}

	if goals, ok := report.Context.Goals(); ok && len(goals.Goals) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Goals")
		for _, g := range goals.Goals {
			fmt.Fprintf(w, "  %-22s%-16s needs %.2f/month\n", g.Name, g.Feasibility, g.RequiredMonthly)
		}
	}

	if advice, ok := report.Context.Advice(); ok {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Recommendations")
		for _, r := range advice.Recommendations {
			fmt.Fprintf(w, "  • %s\n", r)
		}
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case orchestrator.StatusSuccess, orchestrator.RunCompleted:
		return color.New(color.FgGreen)
	case orchestrator.StatusSkipped:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
