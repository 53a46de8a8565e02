// ABOUTME: Routes tool calls to built-in handlers with schema validation and timeouts.
// ABOUTME: Single in-process invocation path shared by every transport and the orchestrator.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolExecution indicates the handler failed in a way the caller should not see in detail.
var ErrToolExecution = errors.New("tool execution failed")

// ErrToolPanic indicates the handler panicked.
var ErrToolPanic = errors.New("tool panicked")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 30 * time.Second

// Tool call outcomes reported to the metrics observer.
const (
	OutcomeOK            = "ok"
	OutcomeFailure       = "failure"
	OutcomeInvalidParams = "invalid_params"
	OutcomeNotFound      = "not_found"
	OutcomeTimeout       = "timeout"
	OutcomeError         = "error"
)

// CallObserver receives one observation per routed tool call.
type CallObserver interface {
	ObserveToolCall(tool, outcome string, d time.Duration)
}

// ToolResult is the outcome of a served tool call. Exactly one of OutputJSON
// and Failure is meaningful: Failure is set when the handler rejected the operation.
type ToolResult struct {
	RequestID  string
	OutputJSON json.RawMessage
	Failure    string
}

// IsFailure reports whether the tool rejected the operation.
func (r *ToolResult) IsFailure() bool {
	return r.Failure != ""
}

// Text returns the JSON text placed in the caller-facing content block.
func (r *ToolResult) Text() string {
	if r.IsFailure() {
		return string(FailureJSON(r.Failure))
	}
	return string(r.OutputJSON)
}

// Router routes tool calls to the registered handlers.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	observer CallObserver
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
	Observer CallObserver
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: cfg.Registry,
		logger:   logger,
		timeout:  timeout,
		observer: cfg.Observer,
	}
}

type handlerOutcome struct {
	output json.RawMessage
	err    error
}

// RouteToolCall validates the input against the tool's schema and runs its handler.
//
// Returns ErrToolNotFound for unknown tools and a *ParamError for invalid input.
// Handler rejections come back as a ToolResult with Failure set. Any other handler
// error, panic, timeout, or cancellation is wrapped in ErrToolExecution.
func (r *Router) RouteToolCall(ctx context.Context, toolName string, input json.RawMessage, requestID, caller string) (*ToolResult, error) {
	start := time.Now()

	entry := r.registry.lookup(toolName)
	if entry == nil {
		r.logger.Debug("tool not found in registry",
			"tool_name", toolName,
			"request_id", requestID,
		)
		r.observe(toolName, OutcomeNotFound, start)
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	if len(input) == 0 || string(input) == "null" {
		input = json.RawMessage("{}")
	}

	if err := entry.Schema.Validate(input); err != nil {
		r.logger.Debug("tool input rejected",
			"tool_name", toolName,
			"request_id", requestID,
			"error", err,
		)
		r.observe(toolName, OutcomeInvalidParams, start)
		return nil, err
	}

	timeout := r.timeout
	if entry.Tool.Definition.TimeoutSeconds > 0 {
		timeout = time.Duration(entry.Tool.Definition.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logger.Info("→ dispatching to builtin",
		"tool_name", toolName,
		"request_id", requestID,
		"caller", caller,
	)

	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- handlerOutcome{err: fmt.Errorf("%w: %v", ErrToolPanic, p)}
			}
		}()
		out, err := entry.Tool.Handler(ctx, caller, input)
		done <- handlerOutcome{output: out, err: err}
	}()

	var res handlerOutcome
	select {
	case res = <-done:
	case <-ctx.Done():
		r.logger.Warn("tool call timed out or cancelled",
			"tool_name", toolName,
			"request_id", requestID,
			"timeout", timeout,
			"error", ctx.Err(),
		)
		r.observe(toolName, OutcomeTimeout, start)
		return nil, fmt.Errorf("%w: %s: %w", ErrToolExecution, toolName, ctx.Err())
	}

	if res.err != nil {
		var failure *ToolFailure
		switch {
		case errors.As(res.err, &failure):
			r.logger.Info("← builtin rejected call",
				"tool_name", toolName,
				"request_id", requestID,
				"reason", failure.Message,
			)
			r.observe(toolName, OutcomeFailure, start)
			return &ToolResult{RequestID: requestID, Failure: failure.Message}, nil
		case errors.Is(res.err, ErrInvalidParams):
			r.observe(toolName, OutcomeInvalidParams, start)
			return nil, res.err
		default:
			r.logger.Warn("builtin tool error",
				"tool_name", toolName,
				"request_id", requestID,
				"error", res.err,
			)
			outcome := OutcomeError
			if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
				outcome = OutcomeTimeout
			}
			r.observe(toolName, outcome, start)
			return nil, fmt.Errorf("%w: %s: %w", ErrToolExecution, toolName, res.err)
		}
	}

	r.logger.Info("← builtin responded",
		"tool_name", toolName,
		"request_id", requestID,
		"duration", time.Since(start),
	)
	r.observe(toolName, OutcomeOK, start)
	return &ToolResult{RequestID: requestID, OutputJSON: res.output}, nil
}

func (r *Router) observe(tool, outcome string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveToolCall(tool, outcome, time.Since(start))
	}
}

// HasTool checks if a tool with the given name exists in the registry.
func (r *Router) HasTool(toolName string) bool {
	return r.registry.IsBuiltin(toolName)
}

// GetToolDefinition returns the tool definition for a given tool name.
// Returns nil if the tool is not found.
func (r *Router) GetToolDefinition(toolName string) *ToolDefinition {
	if builtin := r.registry.GetBuiltinTool(toolName); builtin != nil {
		return builtin.Definition
	}
	return nil
}

// Registry returns the registry the router dispatches against.
func (r *Router) Registry() *Registry {
	return r.registry
}
