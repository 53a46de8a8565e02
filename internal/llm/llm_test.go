// ABOUTME: Tests for confidence parsing and the deterministic template generator.
// ABOUTME: Model-backed generation is covered in openai_test.go.

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantBody string
		wantConf float64
		wantOK   bool
	}{
		{"trailing line", "Save more.\nCONFIDENCE: 0.82", "Save more.", 0.82, true},
		{"lower case and spacing", "Save more.\n  confidence : .5  ", "Save more.", 0.5, true},
		{"markdown bold", "Save more.\n**Confidence**: 0.9", "Save more.", 0.9, true},
		{"clamped high", "Text\nCONFIDENCE: 7", "Text", 1, true},
		{"missing", "Just advice.", "Just advice.", DefaultConfidence, false},
		{"not a number", "Text\nCONFIDENCE: high", "Text\nCONFIDENCE: high", DefaultConfidence, false},
		{"last line wins", "CONFIDENCE: 0.1\nMiddle\nCONFIDENCE: 0.6", "CONFIDENCE: 0.1\nMiddle", 0.6, true},
		{"only confidence", "CONFIDENCE: 0.4", "", 0.4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, conf, ok := ParseConfidence(tt.text)
			assert.Equal(t, tt.wantBody, body)
			assert.InDelta(t, tt.wantConf, conf, 1e-9)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 0.3, Clamp(0.3))
	assert.Equal(t, 1.0, Clamp(1.4))
}

func TestTemplateIsDeterministic(t *testing.T) {
	p := Prompt{
		Stage: "spending_analysis",
		Facts: map[string]any{
			"monthly_capacity": 2000.0,
			"top_category":     "Housing",
			"recommendations":  []string{"Cut dining", "Automate savings"},
		},
	}

	first, err := Template{}.Generate(context.Background(), p)
	require.NoError(t, err)
	second, err := Template{}.Generate(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, TemplateConfidence, first.Confidence)
	assert.Equal(t, "Spending analysis based on your recorded transactions.\n"+
		"- monthly capacity: 2000.00\n"+
		"- recommendations: Cut dining; Automate savings\n"+
		"- top category: Housing", first.Text)
}

func TestTemplateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Template{}.Generate(ctx, Prompt{Stage: "advice_synthesis"})
	assert.ErrorIs(t, err, context.Canceled)
}
