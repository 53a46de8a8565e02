// ABOUTME: Shared helpers for finance pack tests.
// ABOUTME: Opens a temporary SQLite store and invokes handlers by tool name.

package builtins

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func findHandler(pack *packs.BuiltinPack, name string) packs.ToolHandler {
	for _, tool := range pack.Tools {
		if tool.Definition.Name == name {
			return tool.Handler
		}
	}
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "finance.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPack(t *testing.T) (*packs.BuiltinPack, *store.SQLiteStore) {
	t.Helper()
	s := newTestStore(t)
	return newFinancePack(s, func() time.Time { return fixedNow }), s
}

// call runs a handler and decodes its response into a generic map.
func call(t *testing.T, pack *packs.BuiltinPack, name, input string) map[string]any {
	t.Helper()
	handler := findHandler(pack, name)
	if handler == nil {
		t.Fatalf("%s handler not found", name)
	}
	out, err := handler(context.Background(), "tester", json.RawMessage(input))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal %s result: %v", name, err)
	}
	if resp["success"] != true {
		t.Fatalf("%s: expected success, got %v", name, resp)
	}
	return resp
}

// callFailure runs a handler that is expected to reject the call.
func callFailure(t *testing.T, pack *packs.BuiltinPack, name, input string) string {
	t.Helper()
	_, err := findHandler(pack, name)(context.Background(), "tester", json.RawMessage(input))
	failure, ok := err.(*packs.ToolFailure)
	if !ok {
		t.Fatalf("%s: expected ToolFailure, got %v", name, err)
	}
	return failure.Message
}

func createCustomer(t *testing.T, pack *packs.BuiltinPack, email string) int64 {
	t.Helper()
	resp := call(t, pack, "create_customer", `{"name":"Test Customer","email":"`+email+`"}`)
	return int64(resp["customer"].(map[string]any)["id"].(float64))
}
