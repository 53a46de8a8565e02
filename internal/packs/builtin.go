// ABOUTME: Built-in tool types for tools that execute in-process.
// ABOUTME: Defines tool descriptors, handlers, packs, and the tool-level failure type.

package packs

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolDefinition describes a tool to callers. InputSchemaJSON is a JSON Schema
// object listing the tool's properties and required fields.
type ToolDefinition struct {
	Name            string
	Description     string
	InputSchemaJSON string
	TimeoutSeconds  int
}

// ToolHandler is a function that executes a built-in tool.
// It receives the caller's identity and the tool input as JSON.
// Returns the result as JSON or an error.
type ToolHandler func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error)

// BuiltinTool represents a tool that executes in the server process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID and compiled schema.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
	Schema *Schema
}

// ToolFailure is returned by a handler when the call was served but the
// operation was rejected, such as an unknown customer or an invalid status
// change. It is reported to the caller inside a successful result.
type ToolFailure struct {
	Message string
}

func (f *ToolFailure) Error() string {
	return f.Message
}

// Failuref builds a ToolFailure with a formatted message.
func Failuref(format string, args ...any) error {
	return &ToolFailure{Message: fmt.Sprintf(format, args...)}
}

// FailureJSON renders a tool failure in the wire shape {"success":false,"error":msg}.
func FailureJSON(message string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{"success": false, "error": message})
	return data
}
