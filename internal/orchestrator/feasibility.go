// ABOUTME: Pure goal feasibility calculations used by the goal_feasibility stage.
// ABOUTME: Month arithmetic, priority ordering, and capacity allocation.

package orchestrator

import (
	"math"
	"sort"
	"time"

	"github.com/2389/finmcp/internal/store"
)

// Feasibility ratings.
const (
	FeasibilityHighly      = "highly_feasible"
	FeasibilityFeasible    = "feasible"
	FeasibilityChallenging = "challenging"
	FeasibilityUnrealistic = "unrealistic"
	FeasibilityOpenEnded   = "open_ended"
	FeasibilityAchieved    = "achieved"
	FeasibilityExceeded    = "exceeded"
)

// GoalInput is the subset of a stored goal needed to assess it.
type GoalInput struct {
	ID            int64   `json:"id"`
	Name          string  `json:"goal_name"`
	Type          string  `json:"goal_type"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	TargetDate    string  `json:"target_date"`
	Priority      string  `json:"priority"`
}

// GoalAssessment is the feasibility verdict for one goal.
type GoalAssessment struct {
	GoalID           int64   `json:"goal_id"`
	Name             string  `json:"goal_name"`
	Priority         string  `json:"priority"`
	TargetDate       string  `json:"target_date,omitempty"`
	Remaining        float64 `json:"remaining"`
	MonthsRemaining  int     `json:"months_remaining,omitempty"`
	RequiredMonthly  float64 `json:"required_monthly"`
	AllocatedMonthly float64 `json:"allocated_monthly"`
	Feasibility      string  `json:"feasibility"`
}

// monthsUntil counts whole calendar months from now to target, with a floor of 1.
func monthsUntil(now, target time.Time) int {
	months := (target.Year()-now.Year())*12 + int(target.Month()-now.Month())
	if target.Day() < now.Day() {
		months--
	}
	if months < 1 {
		return 1
	}
	return months
}

// classify rates a required amount against the capacity still unallocated.
func classify(required, capacity float64) string {
	if capacity <= 0 {
		return FeasibilityUnrealistic
	}
	switch ratio := required / capacity; {
	case ratio <= 0.5:
		return FeasibilityHighly
	case ratio <= 1:
		return FeasibilityFeasible
	case ratio <= 1.5:
		return FeasibilityChallenging
	default:
		return FeasibilityUnrealistic
	}
}

// sortGoals orders goals by priority (high first), then target date (earliest
// first, undated last), then id.
func sortGoals(goals []GoalInput) {
	sort.SliceStable(goals, func(i, j int) bool {
		a, b := goals[i], goals[j]
		ra := store.GoalPriority(a.Priority).Rank()
		rb := store.GoalPriority(b.Priority).Rank()
		if ra != rb {
			return ra < rb
		}
		if a.TargetDate != b.TargetDate {
			if a.TargetDate == "" {
				return false
			}
			if b.TargetDate == "" {
				return true
			}
			return a.TargetDate < b.TargetDate
		}
		return a.ID < b.ID
	})
}

// assessGoals allocates capacity to goals in priority order and rates each one.
func assessGoals(goals []GoalInput, capacity float64, now time.Time) []GoalAssessment {
	ordered := make([]GoalInput, len(goals))
	copy(ordered, goals)
	sortGoals(ordered)

	available := math.Max(capacity, 0)
	out := make([]GoalAssessment, 0, len(ordered))
	for _, g := range ordered {
		a := GoalAssessment{
			GoalID:     g.ID,
			Name:       g.Name,
			Priority:   g.Priority,
			TargetDate: g.TargetDate,
			Remaining:  round2(math.Max(g.TargetAmount-g.CurrentAmount, 0)),
		}

		switch {
		case g.CurrentAmount > g.TargetAmount:
			a.Feasibility = FeasibilityExceeded
		case g.CurrentAmount == g.TargetAmount:
			a.Feasibility = FeasibilityAchieved
		case g.TargetDate == "":
			a.Feasibility = FeasibilityOpenEnded
		default:
			target, err := time.Parse(time.DateOnly, g.TargetDate)
			if err != nil {
				a.Feasibility = FeasibilityOpenEnded
				break
			}
			a.MonthsRemaining = monthsUntil(now, target)
			a.RequiredMonthly = round2(a.Remaining / float64(a.MonthsRemaining))
			a.Feasibility = classify(a.RequiredMonthly, available)
			a.AllocatedMonthly = round2(math.Min(a.RequiredMonthly, available))
			available -= a.AllocatedMonthly
		}
		out = append(out, a)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
