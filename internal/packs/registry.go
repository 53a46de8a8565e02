// ABOUTME: Thread-safe registry of built-in tool packs and their tools.
// ABOUTME: Validates tool definitions at registration and preserves declaration order.

package packs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrToolCollision indicates a tool name already exists from another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidTool indicates a tool definition failed validation at registration.
var ErrInvalidTool = errors.New("invalid tool definition")

// Registry maintains the registry of built-in packs and their tools.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*builtinEntry // builtin tool name -> builtin entry
	order    []string                 // tool names in registration order
	packIDs  []string                 // pack IDs in registration order
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// validateTool checks a tool before it is registered and returns its compiled schema.
func validateTool(tool *BuiltinTool) (*Schema, error) {
	if tool == nil || tool.Definition == nil {
		return nil, fmt.Errorf("%w: missing definition", ErrInvalidTool)
	}
	name := tool.Definition.Name
	if name == "" {
		return nil, fmt.Errorf("%w: tool name is required", ErrInvalidTool)
	}
	if tool.Handler == nil {
		return nil, fmt.Errorf("%w: tool '%s' has no handler", ErrInvalidTool, name)
	}
	schema, err := CompileSchema(tool.Definition.InputSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: tool '%s': %v", ErrInvalidTool, name, err)
	}
	return schema, nil
}

// RegisterBuiltinPack registers a pack of built-in tools that execute in-process.
// Returns ErrInvalidTool if any definition is malformed and ErrToolCollision if
// any tool name is already registered. Nothing is registered on error.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schemas := make([]*Schema, len(pack.Tools))
	seen := make(map[string]bool, len(pack.Tools))
	for i, tool := range pack.Tools {
		schema, err := validateTool(tool)
		if err != nil {
			return err
		}
		name := tool.Definition.Name
		if _, exists := r.builtins[name]; exists || seen[name] {
			return fmt.Errorf("%w: tool '%s' already registered as builtin", ErrToolCollision, name)
		}
		seen[name] = true
		schemas[i] = schema
	}

	for i, tool := range pack.Tools {
		r.builtins[tool.Definition.Name] = &builtinEntry{
			Tool:   tool,
			PackID: pack.ID,
			Schema: schemas[i],
		}
		r.order = append(r.order, tool.Definition.Name)
	}
	r.packIDs = append(r.packIDs, pack.ID)

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.order),
	)

	return nil
}

// GetBuiltinTool returns a builtin tool by name, or nil if not found.
func (r *Registry) GetBuiltinTool(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.builtins[name]; ok {
		return entry.Tool
	}
	return nil
}

// lookup returns the full registry entry for a tool.
func (r *Registry) lookup(name string) *builtinEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builtins[name]
}

// IsBuiltin returns true if the tool name is a builtin tool.
func (r *Registry) IsBuiltin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builtins[name]
	return ok
}

// ListTools returns every registered tool definition in registration order.
func (r *Registry) ListTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.builtins[name].Tool.Definition)
	}
	return tools
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID    string
	Tools []*BuiltinTool
}

// ListBuiltinPacks returns registered packs in registration order.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPack := make(map[string][]*BuiltinTool)
	for _, name := range r.order {
		entry := r.builtins[name]
		byPack[entry.PackID] = append(byPack[entry.PackID], entry.Tool)
	}

	result := make([]BuiltinPackInfo, 0, len(r.packIDs))
	for _, id := range r.packIDs {
		result = append(result, BuiltinPackInfo{ID: id, Tools: byPack[id]})
	}
	return result
}

// Close clears the registry.
// This should be called during graceful shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	builtinCount := len(r.builtins)
	r.builtins = make(map[string]*builtinEntry)
	r.order = nil
	r.packIDs = nil

	r.logger.Info("registry closed", "builtins_cleared", builtinCount)
}
