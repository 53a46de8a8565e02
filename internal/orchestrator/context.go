// ABOUTME: Append-only typed context shared by the stages of one orchestration run.
// ABOUTME: A stage can read outputs of earlier stages but never overwrite one.

package orchestrator

import (
	"errors"
	"fmt"
	"sync"
)

// Stage names, in execution order.
const (
	StageSpending = "spending_analysis"
	StageGoals    = "goal_feasibility"
	StageAdvice   = "advice_synthesis"
)

// ErrStageRecorded indicates an output was already stored for the stage.
var ErrStageRecorded = errors.New("stage output already recorded")

// RunContext holds the outputs of completed stages for a single run.
type RunContext struct {
	mu      sync.RWMutex
	outputs map[string]any
	order   []string
}

// NewRunContext creates an empty context.
func NewRunContext() *RunContext {
	return &RunContext{outputs: make(map[string]any)}
}

// Put records the output of a stage. Each stage may be recorded once.
func (c *RunContext) Put(stage string, output any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.outputs[stage]; exists {
		return fmt.Errorf("%w: %s", ErrStageRecorded, stage)
	}
	c.outputs[stage] = output
	c.order = append(c.order, stage)
	return nil
}

// Stages returns the recorded stage names in the order they were written.
func (c *RunContext) Stages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Spending returns the spending analysis output, if recorded.
func (c *RunContext) Spending() (*SpendingOutput, bool) {
	return get[*SpendingOutput](c, StageSpending)
}

// Goals returns the goal feasibility output, if recorded.
func (c *RunContext) Goals() (*GoalsOutput, bool) {
	return get[*GoalsOutput](c, StageGoals)
}

// Advice returns the advice synthesis output, if recorded.
func (c *RunContext) Advice() (*AdviceOutput, bool) {
	return get[*AdviceOutput](c, StageAdvice)
}

func get[T any](c *RunContext, stage string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.outputs[stage].(T)
	return v, ok
}
