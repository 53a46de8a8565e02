// ABOUTME: Tests for month arithmetic, feasibility ratings, and capacity allocation.
// ABOUTME: Also covers the append-only run context.

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMonthsUntil(t *testing.T) {
	now := date("2026-03-15")
	tests := []struct {
		target string
		want   int
	}{
		{"2027-03-15", 12},
		{"2027-03-14", 11},
		{"2026-04-15", 1},
		{"2026-03-20", 1},
		{"2025-01-01", 1},
		{"2028-09-30", 30},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, monthsUntil(now, date(tt.target)))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FeasibilityHighly, classify(400, 2000))
	assert.Equal(t, FeasibilityHighly, classify(1000, 2000))
	assert.Equal(t, FeasibilityFeasible, classify(2000, 2000))
	assert.Equal(t, FeasibilityChallenging, classify(3000, 2000))
	assert.Equal(t, FeasibilityUnrealistic, classify(3001, 2000))
	assert.Equal(t, FeasibilityUnrealistic, classify(10, 0))
}

func TestAssessGoalsAllocatesByPriority(t *testing.T) {
	now := date("2026-03-15")
	goals := []GoalInput{
		{ID: 1, Name: "Vacation", TargetAmount: 1200, TargetDate: "2026-09-15", Priority: "low"},
		{ID: 2, Name: "Car", TargetAmount: 12000, TargetDate: "2027-03-15", Priority: "high"},
		{ID: 3, Name: "Someday", TargetAmount: 5000, Priority: "high"},
		{ID: 4, Name: "Laptop", TargetAmount: 2000, CurrentAmount: 2000, TargetDate: "2026-06-01", Priority: "medium"},
		{ID: 5, Name: "Bonds", TargetAmount: 1000, CurrentAmount: 1500, TargetDate: "2026-06-01", Priority: "medium"},
	}

	got := assessGoals(goals, 1100, now)
	require.Len(t, got, 5)

	names := make([]string, len(got))
	for i, g := range got {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"Car", "Someday", "Laptop", "Bonds", "Vacation"}, names)

	car := got[0]
	assert.Equal(t, 1000.0, car.RequiredMonthly)
	assert.Equal(t, FeasibilityFeasible, car.Feasibility)
	assert.Equal(t, 1000.0, car.AllocatedMonthly)

	assert.Equal(t, FeasibilityOpenEnded, got[1].Feasibility)
	assert.Equal(t, 0.0, got[1].RequiredMonthly)
	assert.Equal(t, FeasibilityAchieved, got[2].Feasibility)
	assert.Equal(t, FeasibilityExceeded, got[3].Feasibility)
	assert.Equal(t, 0.0, got[3].Remaining)

	// Only 100 of capacity is left for the 200/month vacation.
	vacation := got[4]
	assert.Equal(t, 6, vacation.MonthsRemaining)
	assert.Equal(t, 200.0, vacation.RequiredMonthly)
	assert.Equal(t, FeasibilityUnrealistic, vacation.Feasibility)
	assert.Equal(t, 100.0, vacation.AllocatedMonthly)
}

func TestAssessGoalsDoesNotReorderInput(t *testing.T) {
	goals := []GoalInput{
		{ID: 1, Name: "B", TargetAmount: 10, Priority: "low"},
		{ID: 2, Name: "A", TargetAmount: 10, Priority: "high"},
	}
	assessGoals(goals, 0, date("2026-01-01"))
	assert.Equal(t, "B", goals[0].Name)
}

func TestRunContextIsAppendOnly(t *testing.T) {
	rc := NewRunContext()
	require.NoError(t, rc.Put(StageSpending, &SpendingOutput{MonthlyCapacity: 10}))

	err := rc.Put(StageSpending, &SpendingOutput{MonthlyCapacity: 99})
	assert.ErrorIs(t, err, ErrStageRecorded)

	spending, ok := rc.Spending()
	require.True(t, ok)
	assert.Equal(t, 10.0, spending.MonthlyCapacity)

	_, ok = rc.Goals()
	assert.False(t, ok)
	assert.Equal(t, []string{StageSpending}, rc.Stages())
}
