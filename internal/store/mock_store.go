// ABOUTME: Mock FinanceStore implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject failures

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory FinanceStore implementation for testing.
// Setting FailWith makes every method return that error.
type MockStore struct {
	mu           sync.RWMutex
	customers    map[int64]*Customer
	transactions []*Transaction
	goals        map[int64]*Goal
	advice       []*Advice
	interactions []*Interaction
	nextID       int64

	FailWith error
}

var _ FinanceStore = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		customers: make(map[int64]*Customer),
		goals:     make(map[int64]*Goal),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateCustomer stores a new customer.
func (m *MockStore) CreateCustomer(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	for _, existing := range m.customers {
		if existing.Email == c.Email {
			return ErrDuplicateEmail
		}
	}

	c.ID = m.id()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	c.UpdatedAt = c.CreatedAt

	// Make a copy to avoid external modification
	stored := *c
	m.customers[c.ID] = &stored
	return nil
}

// GetCustomer retrieves a customer by ID.
func (m *MockStore) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	result := *c
	return &result, nil
}

// UpdateCustomer applies a partial edit to a stored customer.
func (m *MockStore) UpdateCustomer(ctx context.Context, id int64, u CustomerUpdate) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	if u.Email != nil {
		for otherID, existing := range m.customers {
			if otherID != id && existing.Email == *u.Email {
				return nil, ErrDuplicateEmail
			}
		}
	}
	if !u.Empty() {
		u.apply(c)
		c.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	}
	result := *c
	return &result, nil
}

// AddTransaction stores a transaction.
func (m *MockStore) AddTransaction(ctx context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.customers[t.CustomerID]; !ok {
		return ErrCustomerNotFound
	}
	if t.Amount <= 0 || !t.Type.Valid() {
		return fmt.Errorf("inserting transaction: constraint failed")
	}

	t.ID = m.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	stored := *t
	m.transactions = append(m.transactions, &stored)
	return nil
}

func (m *MockStore) matching(f TransactionFilter) []*Transaction {
	var out []*Transaction
	for _, t := range m.transactions {
		if t.CustomerID != f.CustomerID {
			continue
		}
		if f.Since != "" && t.Date < f.Since {
			continue
		}
		if f.Until != "" && t.Date > f.Until {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	return out
}

// ListTransactions returns matching transactions, newest first.
func (m *MockStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	out := m.matching(f)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	if limit := normalizeTransactionLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SpendingSummary aggregates transactions the same way the SQLite store does.
func (m *MockStore) SpendingSummary(ctx context.Context, customerID int64, since string) (*SpendingSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	summary := &SpendingSummary{CustomerID: customerID, Since: since}
	byCategory := make(map[string]*CategoryTotal)
	byMonth := make(map[string]*MonthTotal)

	for _, t := range m.matching(TransactionFilter{CustomerID: customerID, Since: since}) {
		key := categoryKey(t.Category, t.Type)
		ct, ok := byCategory[key]
		if !ok {
			ct = &CategoryTotal{Category: t.Category, Type: t.Type}
			byCategory[key] = ct
		}
		ct.Total += t.Amount
		ct.Count++
		summary.TransactionCount++

		month := t.Date[:7]
		mt, ok := byMonth[month]
		if !ok {
			mt = &MonthTotal{Month: month}
			byMonth[month] = mt
		}
		if t.Type == TransactionIncome {
			mt.Income += t.Amount
		} else {
			mt.Expenses += t.Amount
		}
	}

	for _, ct := range byCategory {
		summary.Categories = append(summary.Categories, *ct)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Type < b.Type
	})

	for _, mt := range byMonth {
		summary.Months = append(summary.Months, *mt)
	}
	sort.Slice(summary.Months, func(i, j int) bool {
		return summary.Months[i].Month > summary.Months[j].Month
	})

	return summary, nil
}

// CreateGoal stores a goal.
func (m *MockStore) CreateGoal(ctx context.Context, g *Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.customers[g.CustomerID]; !ok {
		return ErrCustomerNotFound
	}

	if g.Priority == "" {
		g.Priority = PriorityMedium
	}
	if g.Status == "" {
		g.Status = GoalActive
	}
	g.ID = m.id()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	g.UpdatedAt = g.CreatedAt

	stored := *g
	m.goals[g.ID] = &stored
	return nil
}

// GetGoal retrieves a goal by ID.
func (m *MockStore) GetGoal(ctx context.Context, id int64) (*Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	g, ok := m.goals[id]
	if !ok {
		return nil, ErrGoalNotFound
	}
	result := *g
	return &result, nil
}

// ListGoals returns goals ordered like the SQLite store.
func (m *MockStore) ListGoals(ctx context.Context, customerID int64, status GoalStatus) ([]*Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	goals := []*Goal{}
	for _, g := range m.goals {
		if g.CustomerID != customerID {
			continue
		}
		if status != "" && g.Status != status {
			continue
		}
		copied := *g
		goals = append(goals, &copied)
	}
	sort.Slice(goals, func(i, j int) bool {
		a, b := goals[i], goals[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if (a.TargetDate == "") != (b.TargetDate == "") {
			return b.TargetDate == ""
		}
		if a.TargetDate != b.TargetDate {
			return a.TargetDate < b.TargetDate
		}
		return a.ID < b.ID
	})
	return goals, nil
}

// UpdateGoalProgress applies a progress update with the same rules as SQLite.
func (m *MockStore) UpdateGoalProgress(ctx context.Context, p GoalProgress) (*Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	g, ok := m.goals[p.GoalID]
	if !ok {
		return nil, ErrGoalNotFound
	}
	next, err := ResolveGoalStatus(g, p)
	if err != nil {
		return nil, err
	}
	g.CurrentAmount = p.CurrentAmount
	g.Status = next
	g.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	result := *g
	return &result, nil
}

// SaveAdvice appends an advice record.
func (m *MockStore) SaveAdvice(ctx context.Context, a *Advice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.customers[a.CustomerID]; !ok {
		return ErrCustomerNotFound
	}

	a.ID = m.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	stored := *a
	m.advice = append(m.advice, &stored)
	return nil
}

// ListAdvice returns matching advice, newest first.
func (m *MockStore) ListAdvice(ctx context.Context, f AdviceFilter) ([]*Advice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	out := []*Advice{}
	for i := len(m.advice) - 1; i >= 0; i-- {
		a := m.advice[i]
		if a.CustomerID != f.CustomerID {
			continue
		}
		if f.AgentName != "" && a.AgentName != f.AgentName {
			continue
		}
		if f.AdviceType != "" && a.AdviceType != f.AdviceType {
			continue
		}
		copied := *a
		out = append(out, &copied)
		if len(out) == normalizeAdviceLimit(f.Limit) {
			break
		}
	}
	return out, nil
}

// LogInteraction appends an interaction entry.
func (m *MockStore) LogInteraction(ctx context.Context, i *Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if i.CustomerID != nil {
		if _, ok := m.customers[*i.CustomerID]; !ok {
			return ErrCustomerNotFound
		}
	}

	i.ID = m.id()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	stored := *i
	m.interactions = append(m.interactions, &stored)
	return nil
}

// ListInteractions returns a session's interactions in logging order.
func (m *MockStore) ListInteractions(ctx context.Context, sessionID string) ([]*Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var out []*Interaction
	for _, i := range m.interactions {
		if i.SessionID == sessionID {
			copied := *i
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ListCategories returns the default category list.
func (m *MockStore) ListCategories(ctx context.Context, incomeOnly bool) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return DefaultCategories(incomeOnly), nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

func sortCategories(cats []*Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].ParentCategory != cats[j].ParentCategory {
			return cats[i].ParentCategory < cats[j].ParentCategory
		}
		return cats[i].Name < cats[j].Name
	})
}
