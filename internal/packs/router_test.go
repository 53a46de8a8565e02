// ABOUTME: Tests for the tool router including validation, timeout, panic, and failure handling.
// ABOUTME: Validates that outcomes are reported to the call observer.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveToolCall(tool, outcome string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, tool+":"+outcome)
}

// setupRouterTest creates a registry and router for testing.
func setupRouterTest(t *testing.T, tools ...*BuiltinTool) (*Router, *recordingObserver) {
	t.Helper()
	registry := NewRegistry(slog.Default())
	if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "builtin:test", Tools: tools}); err != nil {
		t.Fatalf("failed to register pack: %v", err)
	}
	obs := &recordingObserver{}
	router := NewRouter(RouterConfig{
		Registry: registry,
		Logger:   slog.Default(),
		Timeout:  time.Second,
		Observer: obs,
	})
	return router, obs
}

func toolWith(name, schema string, h ToolHandler) *BuiltinTool {
	return &BuiltinTool{
		Definition: &ToolDefinition{Name: name, InputSchemaJSON: schema},
		Handler:    h,
	}
}

const echoSchema = `{
	"type": "object",
	"properties": {
		"customer_id": {"type": "integer"},
		"kind": {"type": "string", "enum": ["income", "expense"]}
	},
	"required": ["customer_id"]
}`

func TestRouterRouteToolCall(t *testing.T) {
	echo := toolWith("echo", echoSchema, func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]any{"caller": caller, "input": json.RawMessage(input)})
	})

	t.Run("routes to handler and returns output", func(t *testing.T) {
		router, obs := setupRouterTest(t, echo)

		res, err := router.RouteToolCall(context.Background(), "echo", json.RawMessage(`{"customer_id": 7}`), "req-1", "tester")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.RequestID != "req-1" {
			t.Errorf("expected request id req-1, got %s", res.RequestID)
		}
		if res.IsFailure() {
			t.Fatalf("unexpected failure: %s", res.Failure)
		}
		var out struct {
			Caller string `json:"caller"`
		}
		if err := json.Unmarshal(res.OutputJSON, &out); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if out.Caller != "tester" {
			t.Errorf("expected caller tester, got %s", out.Caller)
		}
		if len(obs.outcomes) != 1 || obs.outcomes[0] != "echo:ok" {
			t.Errorf("unexpected observations: %v", obs.outcomes)
		}
	})

	t.Run("returns ErrToolNotFound for unknown tool", func(t *testing.T) {
		router, obs := setupRouterTest(t, echo)

		res, err := router.RouteToolCall(context.Background(), "nonexistent", nil, "req-2", "")
		if !errors.Is(err, ErrToolNotFound) {
			t.Fatalf("expected ErrToolNotFound, got %v", err)
		}
		if res != nil {
			t.Error("expected nil result")
		}
		if obs.outcomes[0] != "nonexistent:not_found" {
			t.Errorf("unexpected observation: %v", obs.outcomes)
		}
	})

	t.Run("rejects missing required field", func(t *testing.T) {
		router, _ := setupRouterTest(t, echo)

		_, err := router.RouteToolCall(context.Background(), "echo", nil, "req-3", "")
		var pe *ParamError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ParamError, got %v", err)
		}
		if pe.Field != "customer_id" {
			t.Errorf("expected field customer_id, got %q", pe.Field)
		}
		if !errors.Is(err, ErrInvalidParams) {
			t.Error("expected error to match ErrInvalidParams")
		}
	})

	t.Run("rejects wrong type and enum", func(t *testing.T) {
		router, _ := setupRouterTest(t, echo)

		_, err := router.RouteToolCall(context.Background(), "echo", json.RawMessage(`{"customer_id":"7"}`), "r", "")
		if err == nil || err.Error() != "invalid params: customer_id must be an integer" {
			t.Errorf("unexpected error: %v", err)
		}

		_, err = router.RouteToolCall(context.Background(), "echo", json.RawMessage(`{"customer_id":1.5}`), "r", "")
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("expected fractional integer to be rejected, got %v", err)
		}

		_, err = router.RouteToolCall(context.Background(), "echo", json.RawMessage(`{"customer_id":1,"kind":"gift"}`), "r", "")
		if err == nil || err.Error() != "invalid params: kind must be one of: income, expense" {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("converts tool failure to result", func(t *testing.T) {
		failing := toolWith("reject", `{"type":"object"}`, func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			return nil, Failuref("customer %d not found", 42)
		})
		router, obs := setupRouterTest(t, failing)

		res, err := router.RouteToolCall(context.Background(), "reject", nil, "req-4", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.IsFailure() || res.Failure != "customer 42 not found" {
			t.Fatalf("unexpected result: %+v", res)
		}
		if res.Text() != `{"error":"customer 42 not found","success":false}` {
			t.Errorf("unexpected text: %s", res.Text())
		}
		if obs.outcomes[0] != "reject:failure" {
			t.Errorf("unexpected observation: %v", obs.outcomes)
		}
	})

	t.Run("wraps handler errors", func(t *testing.T) {
		storeErr := errors.New("database is locked")
		broken := toolWith("broken", `{"type":"object"}`, func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			return nil, storeErr
		})
		router, _ := setupRouterTest(t, broken)

		_, err := router.RouteToolCall(context.Background(), "broken", nil, "req-5", "")
		if !errors.Is(err, ErrToolExecution) {
			t.Fatalf("expected ErrToolExecution, got %v", err)
		}
		if !errors.Is(err, storeErr) {
			t.Error("expected underlying error to be preserved for logging")
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		panicky := toolWith("panicky", `{"type":"object"}`, func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			panic("boom")
		})
		router, _ := setupRouterTest(t, panicky)

		_, err := router.RouteToolCall(context.Background(), "panicky", nil, "req-6", "")
		if !errors.Is(err, ErrToolPanic) {
			t.Fatalf("expected ErrToolPanic, got %v", err)
		}
	})

	t.Run("times out slow handler", func(t *testing.T) {
		slow := &BuiltinTool{
			Definition: &ToolDefinition{Name: "slow", InputSchemaJSON: `{"type":"object"}`, TimeoutSeconds: 1},
			Handler: func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
				select {
				case <-time.After(5 * time.Second):
					return json.RawMessage(`{}`), nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}
		router, obs := setupRouterTest(t, slow)

		start := time.Now()
		_, err := router.RouteToolCall(context.Background(), "slow", nil, "req-7", "")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected DeadlineExceeded, got %v", err)
		}
		if time.Since(start) > 3*time.Second {
			t.Error("timeout was not applied")
		}
		if obs.outcomes[0] != "slow:timeout" {
			t.Errorf("unexpected observation: %v", obs.outcomes)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		router, _ := setupRouterTest(t, toolWith("wait", `{"type":"object"}`, func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := router.RouteToolCall(ctx, "wait", nil, "req-8", "")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestRouterToolLookup(t *testing.T) {
	router, _ := setupRouterTest(t, createTestTool("known"))

	if !router.HasTool("known") {
		t.Error("expected HasTool to find known")
	}
	if router.HasTool("unknown") {
		t.Error("expected HasTool to miss unknown")
	}
	if def := router.GetToolDefinition("known"); def == nil || def.Name != "known" {
		t.Errorf("unexpected definition: %+v", def)
	}
	if router.GetToolDefinition("unknown") != nil {
		t.Error("expected nil definition for unknown tool")
	}
}
