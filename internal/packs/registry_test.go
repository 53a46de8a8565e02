// ABOUTME: Tests for the tool registry including validation, ordering, and collision detection.
// ABOUTME: Validates thread-safe lookups and pack listing.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
)

func noopHandler(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"success":true}`), nil
}

// createTestTool creates a BuiltinTool with an empty object schema.
func createTestTool(name string) *BuiltinTool {
	return &BuiltinTool{
		Definition: &ToolDefinition{
			Name:            name,
			Description:     "test tool " + name,
			InputSchemaJSON: `{"type":"object","properties":{}}`,
		},
		Handler: noopHandler,
	}
}

func createTestPack(id string, tools ...*BuiltinTool) *BuiltinPack {
	return &BuiltinPack{ID: id, Tools: tools}
}

func TestRegisterBuiltinPack(t *testing.T) {
	t.Run("registers tools successfully", func(t *testing.T) {
		registry := NewRegistry(slog.Default())

		err := registry.RegisterBuiltinPack(createTestPack("builtin:test", createTestTool("tool_a")))
		if err != nil {
			t.Fatalf("RegisterBuiltinPack: %v", err)
		}

		if !registry.IsBuiltin("tool_a") {
			t.Error("expected tool_a to be builtin")
		}
		tool := registry.GetBuiltinTool("tool_a")
		if tool == nil {
			t.Fatal("expected to find tool_a")
		}
		if tool.Definition.Name != "tool_a" {
			t.Errorf("unexpected name: %s", tool.Definition.Name)
		}
	})

	t.Run("rejects name collision across packs", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		if err := registry.RegisterBuiltinPack(createTestPack("builtin:one", createTestTool("shared"))); err != nil {
			t.Fatalf("first register: %v", err)
		}

		err := registry.RegisterBuiltinPack(createTestPack("builtin:two", createTestTool("other"), createTestTool("shared")))
		if !errors.Is(err, ErrToolCollision) {
			t.Fatalf("expected ErrToolCollision, got %v", err)
		}
		if registry.IsBuiltin("other") {
			t.Error("no tool from a rejected pack should be registered")
		}
	})

	t.Run("rejects duplicate names within a pack", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		err := registry.RegisterBuiltinPack(createTestPack("builtin:dup", createTestTool("x"), createTestTool("x")))
		if !errors.Is(err, ErrToolCollision) {
			t.Fatalf("expected ErrToolCollision, got %v", err)
		}
	})

	invalid := []struct {
		name string
		tool *BuiltinTool
	}{
		{"nil definition", &BuiltinTool{Handler: noopHandler}},
		{"empty name", &BuiltinTool{Definition: &ToolDefinition{InputSchemaJSON: `{"type":"object"}`}, Handler: noopHandler}},
		{"nil handler", &BuiltinTool{Definition: &ToolDefinition{Name: "h", InputSchemaJSON: `{"type":"object"}`}}},
		{"schema not json", &BuiltinTool{Definition: &ToolDefinition{Name: "s", InputSchemaJSON: `{`}, Handler: noopHandler}},
		{"schema not object", &BuiltinTool{Definition: &ToolDefinition{Name: "s", InputSchemaJSON: `{"type":"array"}`}, Handler: noopHandler}},
		{"undeclared required field", &BuiltinTool{Definition: &ToolDefinition{
			Name:            "s",
			InputSchemaJSON: `{"type":"object","properties":{"a":{"type":"string"}},"required":["b"]}`,
		}, Handler: noopHandler}},
		{"unsupported property type", &BuiltinTool{Definition: &ToolDefinition{
			Name:            "s",
			InputSchemaJSON: `{"type":"object","properties":{"a":{"type":"date"}}}`,
		}, Handler: noopHandler}},
	}
	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			registry := NewRegistry(slog.Default())
			err := registry.RegisterBuiltinPack(createTestPack("builtin:bad", tc.tool))
			if !errors.Is(err, ErrInvalidTool) {
				t.Fatalf("expected ErrInvalidTool, got %v", err)
			}
		})
	}
}

func TestRegistryListToolsPreservesOrder(t *testing.T) {
	registry := NewRegistry(slog.Default())
	names := []string{"zeta", "alpha", "mid", "beta"}
	tools := make([]*BuiltinTool, len(names))
	for i, n := range names {
		tools[i] = createTestTool(n)
	}
	if err := registry.RegisterBuiltinPack(createTestPack("builtin:first", tools...)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.RegisterBuiltinPack(createTestPack("builtin:second", createTestTool("aardvark"))); err != nil {
		t.Fatalf("register second: %v", err)
	}

	got := registry.ListTools()
	want := append(names, "aardvark")
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(got))
	}
	for i, def := range got {
		if def.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], def.Name)
		}
	}

	packs := registry.ListBuiltinPacks()
	if len(packs) != 2 || packs[0].ID != "builtin:first" || packs[1].ID != "builtin:second" {
		t.Fatalf("unexpected pack listing: %+v", packs)
	}
	if len(packs[0].Tools) != 4 {
		t.Errorf("expected 4 tools in first pack, got %d", len(packs[0].Tools))
	}
}

func TestRegistryClose(t *testing.T) {
	registry := NewRegistry(slog.Default())
	if err := registry.RegisterBuiltinPack(createTestPack("builtin:test", createTestTool("a"))); err != nil {
		t.Fatalf("register: %v", err)
	}

	registry.Close()

	if registry.IsBuiltin("a") {
		t.Error("expected registry to be empty after Close")
	}
	if len(registry.ListTools()) != 0 {
		t.Error("expected no tools after Close")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("tool_%d", i)
			if err := registry.RegisterBuiltinPack(createTestPack("builtin:"+name, createTestTool(name))); err != nil {
				t.Errorf("register %s: %v", name, err)
			}
			_ = registry.ListTools()
			_ = registry.IsBuiltin(name)
		}(i)
	}
	wg.Wait()

	if got := len(registry.ListTools()); got != 20 {
		t.Errorf("expected 20 tools, got %d", got)
	}
}
