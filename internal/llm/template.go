// ABOUTME: Deterministic generator that renders prompt facts without a model.
// ABOUTME: Used offline, in tests, and when no API key is configured.

package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TemplateConfidence is the confidence reported by the Template generator.
const TemplateConfidence = 0.75

// Template renders a fixed narrative from Prompt.Facts. Identical prompts
// always produce identical text.
type Template struct{}

// Generate renders the prompt facts as a short report.
func (Template) Generate(ctx context.Context, p Prompt) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}

	var b strings.Builder
	b.WriteString(headline(p.Stage))
	b.WriteString("\n")

	keys := make([]string, 0, len(p.Facts))
	for k := range p.Facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(k, "_", " "), formatFact(p.Facts[k]))
	}

	return Completion{Text: strings.TrimSpace(b.String()), Confidence: TemplateConfidence}, nil
}

func headline(stage string) string {
	switch stage {
	case "spending_analysis":
		return "Spending analysis based on your recorded transactions."
	case "goal_feasibility":
		return "Goal feasibility based on your available monthly capacity."
	case "advice_synthesis":
		return "Overall financial recommendations."
	}
	if stage == "" {
		return "Summary."
	}
	return fmt.Sprintf("Summary for %s.", strings.ReplaceAll(stage, "_", " "))
}

func formatFact(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", x)
	case []string:
		return strings.Join(x, "; ")
	default:
		return fmt.Sprint(x)
	}
}
