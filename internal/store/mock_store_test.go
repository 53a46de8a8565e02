// ABOUTME: Tests for MockStore behavior parity with the SQLite store
// ABOUTME: Ensures tests that use the mock see the same ordering and errors

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSummaryFixture(t *testing.T, s FinanceStore) int64 {
	t.Helper()
	c := createTestCustomer(t, s)
	addTxn(t, s, c.ID, 5000, "Salary", "2026-01-01", TransactionIncome)
	addTxn(t, s, c.ID, 1500, "Housing", "2026-01-02", TransactionExpense)
	addTxn(t, s, c.ID, 1500, "Food & Dining", "2026-01-09", TransactionExpense)
	addTxn(t, s, c.ID, 250.50, "Food & Dining", "2026-02-09", TransactionExpense)
	return c.ID
}

func TestMockStore_SummaryMatchesSQLite(t *testing.T) {
	ctx := context.Background()

	sqlite := newTestStore(t)
	mock := NewMockStore()

	sqliteSummary, err := sqlite.SpendingSummary(ctx, seedSummaryFixture(t, sqlite), "")
	require.NoError(t, err)
	mockSummary, err := mock.SpendingSummary(ctx, seedSummaryFixture(t, mock), "")
	require.NoError(t, err)

	assert.Equal(t, sqliteSummary.Categories, mockSummary.Categories)
	assert.Equal(t, sqliteSummary.Months, mockSummary.Months)
	assert.Equal(t, sqliteSummary.Totals(), mockSummary.Totals())
}

func TestMockStore_FailWith(t *testing.T) {
	mock := NewMockStore()
	boom := errors.New("disk I/O error")
	mock.FailWith = boom

	_, err := mock.GetCustomer(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	_, err = mock.ListGoals(context.Background(), 1, GoalActive)
	assert.ErrorIs(t, err, boom)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()
	c := createTestCustomer(t, mock)

	got, err := mock.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := mock.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Customer", again.Name)
}

func TestMockStore_ForeignKeys(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()

	err := mock.SaveAdvice(ctx, &Advice{CustomerID: 7, AgentName: "a", AdviceType: "b", Content: "c"})
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	missing := int64(7)
	err = mock.LogInteraction(ctx, &Interaction{SessionID: "s", CustomerID: &missing, FromAgent: "a", Type: "t", MessageContent: "m"})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
