// ABOUTME: Text generation interface used by the orchestration stages.
// ABOUTME: Defines prompts, completions, and the CONFIDENCE line convention.

package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// DefaultConfidence is used when a completion carries no confidence line.
const DefaultConfidence = 0.7

// ErrEmptyCompletion indicates the generator produced no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// Prompt is one request to a text generator.
type Prompt struct {
	Stage  string
	System string
	User   string
	// Facts are the structured values the prompt text was built from.
	// Generators that do not call a model render from these directly.
	Facts map[string]any
}

// Completion is the generated text and the generator's confidence in it.
type Completion struct {
	Text       string
	Confidence float64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Completion, error)
}

var confidenceLine = regexp.MustCompile(`(?i)^\s*\**confidence\**\s*[:=]\s*([0-9]*\.?[0-9]+)\s*$`)

// ParseConfidence splits a trailing "CONFIDENCE: x" line off text. The last
// matching line wins. ok is false when no line matched, in which case conf is
// DefaultConfidence. conf is clamped to [0,1].
func ParseConfidence(text string) (body string, conf float64, ok bool) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		m := confidenceLine.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		rest := append(lines[:i:i], lines[i+1:]...)
		return strings.TrimSpace(strings.Join(rest, "\n")), Clamp(v), true
	}
	return strings.TrimSpace(text), DefaultConfidence, false
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
