// ABOUTME: Shared fixtures for orchestrator tests.
// ABOUTME: Real SQLite store behind the finance pack, plus scripted generators.

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/finmcp/internal/builtins"
	"github.com/2389/finmcp/internal/llm"
	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

var errGeneratorDown = errors.New("generator unavailable")

// scriptedGenerator records every call and fails for the configured stage.
type scriptedGenerator struct {
	mu         sync.Mutex
	calls      []string
	failStage  string
	confidence float64
}

func (g *scriptedGenerator) Generate(ctx context.Context, p llm.Prompt) (llm.Completion, error) {
	g.mu.Lock()
	g.calls = append(g.calls, p.Stage)
	g.mu.Unlock()

	if p.Stage == g.failStage {
		return llm.Completion{}, errGeneratorDown
	}
	conf := g.confidence
	if conf == 0 {
		conf = 0.8
	}
	return llm.Completion{Text: "narrative for " + p.Stage, Confidence: conf}, nil
}

func (g *scriptedGenerator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// blockingGenerator waits for the stage deadline.
type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, p llm.Prompt) (llm.Completion, error) {
	<-ctx.Done()
	return llm.Completion{}, ctx.Err()
}

type testEnv struct {
	store  *store.SQLiteStore
	router *packs.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "finance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry := packs.NewRegistry(slog.Default())
	require.NoError(t, registry.RegisterBuiltinPack(builtins.FinancePack(s)))

	return &testEnv{
		store:  s,
		router: packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: slog.Default()}),
	}
}

func (e *testEnv) orchestrator(t *testing.T, gen llm.Generator) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Router:       e.router,
		Generator:    gen,
		Logger:       slog.Default(),
		StageTimeout: 5 * time.Second,
		Now:          func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return o
}

// seedScenario creates a customer earning 5000 and spending 3000 a month with
// one active goal of 6000 (1200 saved) due twelve months from fixedNow.
func (e *testEnv) seedScenario(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()

	c := &store.Customer{Name: "Ada Lovelace", Email: "ada@example.com"}
	require.NoError(t, e.store.CreateCustomer(ctx, c))

	txns := []*store.Transaction{
		{Amount: store.ToCents(5000), Category: "Salary", Date: "2026-02-01", Type: store.TransactionIncome},
		{Amount: store.ToCents(1800), Category: "Housing", Date: "2026-02-03", Type: store.TransactionExpense},
		{Amount: store.ToCents(700), Category: "Food & Dining", Date: "2026-02-10", Type: store.TransactionExpense},
		{Amount: store.ToCents(500), Category: "Transportation", Date: "2026-02-20", Type: store.TransactionExpense},
	}
	for _, txn := range txns {
		txn.CustomerID = c.ID
		require.NoError(t, e.store.AddTransaction(ctx, txn))
	}

	require.NoError(t, e.store.CreateGoal(ctx, &store.Goal{
		CustomerID:    c.ID,
		Name:          "Emergency fund",
		Type:          store.GoalSavings,
		TargetAmount:  store.ToCents(6000),
		CurrentAmount: store.ToCents(1200),
		TargetDate:    "2027-03-15",
		Priority:      store.PriorityHigh,
	}))
	return c.ID
}

func (e *testEnv) advice(t *testing.T, customerID int64) []*store.Advice {
	t.Helper()
	records, err := e.store.ListAdvice(context.Background(), store.AdviceFilter{CustomerID: customerID})
	require.NoError(t, err)
	return records
}
