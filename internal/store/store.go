// ABOUTME: FinanceStore interface and data types for customer financial records
// ABOUTME: Defines customers, transactions, goals, advice, interactions, and categories

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrCustomerNotFound is returned when a record references a customer that does not exist
var ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)

// ErrGoalNotFound is returned when a goal id does not exist
var ErrGoalNotFound = fmt.Errorf("goal %w", ErrNotFound)

// ErrDuplicateEmail is returned when creating a customer with an email that is already registered
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidTransition is returned when a goal status change is not allowed
var ErrInvalidTransition = errors.New("invalid goal status transition")

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// GoalType classifies a financial goal.
type GoalType string

const (
	GoalSavings    GoalType = "savings"
	GoalInvestment GoalType = "investment"
	GoalDebtPayoff GoalType = "debt_payoff"
	GoalPurchase   GoalType = "purchase"
)

// ValidGoalTypes lists all goal types in display order.
var ValidGoalTypes = []GoalType{GoalSavings, GoalInvestment, GoalDebtPayoff, GoalPurchase}

// Valid reports whether g is a known goal type.
func (g GoalType) Valid() bool {
	for _, v := range ValidGoalTypes {
		if g == v {
			return true
		}
	}
	return false
}

// GoalPriority orders goals when capacity is allocated.
type GoalPriority string

const (
	PriorityHigh   GoalPriority = "high"
	PriorityMedium GoalPriority = "medium"
	PriorityLow    GoalPriority = "low"
)

// Valid reports whether p is a known priority.
func (p GoalPriority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank returns 0 for high, 1 for medium, 2 for low.
func (p GoalPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

// ValidGoalStatuses lists all goal statuses.
var ValidGoalStatuses = []GoalStatus{GoalActive, GoalCompleted, GoalPaused, GoalCancelled}

// Valid reports whether s is a known status.
func (s GoalStatus) Valid() bool {
	for _, v := range ValidGoalStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// goalTransitions holds the allowed forward moves. Completed and cancelled are terminal.
var goalTransitions = map[GoalStatus][]GoalStatus{
	GoalActive: {GoalPaused, GoalCompleted, GoalCancelled},
	GoalPaused: {GoalActive, GoalCompleted, GoalCancelled},
}

// CanTransition reports whether a goal may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to GoalStatus) bool {
	if from == to {
		return true
	}
	for _, next := range goalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Customer is the owner of every other record.
type Customer struct {
	ID          int64
	Name        string
	Email       string
	Phone       string
	DateOfBirth string // YYYY-MM-DD, optional
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CustomerUpdate carries a partial profile edit. Nil fields are left unchanged
// and an empty Phone or DateOfBirth clears the stored value.
type CustomerUpdate struct {
	Name        *string
	Email       *string
	Phone       *string
	DateOfBirth *string
}

// Empty reports whether the update changes nothing.
func (u CustomerUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.DateOfBirth == nil
}

func (u CustomerUpdate) apply(c *Customer) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.DateOfBirth != nil {
		c.DateOfBirth = *u.DateOfBirth
	}
}

// Transaction is a single income or expense entry. Amount is always positive.
type Transaction struct {
	ID            int64
	CustomerID    int64
	Amount        Cents
	Category      string
	Subcategory   string
	Description   string
	Date          string // YYYY-MM-DD
	Type          TransactionType
	PaymentMethod string
	CreatedAt     time.Time
}

// TransactionFilter narrows a transaction listing. Empty fields do not filter.
type TransactionFilter struct {
	CustomerID int64
	Since      string // inclusive YYYY-MM-DD
	Until      string // inclusive YYYY-MM-DD
	Category   string
	Type       TransactionType
	Limit      int // default 100, max 1000
}

// CategoryTotal aggregates one category of one transaction type.
type CategoryTotal struct {
	Category string
	Type     TransactionType
	Total    Cents
	Count    int
}

// MonthTotal aggregates income and expenses for one calendar month (YYYY-MM).
type MonthTotal struct {
	Month    string
	Income   Cents
	Expenses Cents
}

// SpendingSummary groups a customer's transactions since a cutoff date.
type SpendingSummary struct {
	CustomerID       int64
	Since            string // empty means all time
	Categories       []CategoryTotal
	Months           []MonthTotal
	TransactionCount int
}

// Goal is a customer savings, investment, debt, or purchase target.
type Goal struct {
	ID            int64
	CustomerID    int64
	Name          string
	Type          GoalType
	TargetAmount  Cents
	CurrentAmount Cents
	TargetDate    string // YYYY-MM-DD, optional
	Priority      GoalPriority
	Status        GoalStatus
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProgressPercent returns current/target as a percentage rounded to two decimals.
func (g *Goal) ProgressPercent() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return roundTo(float64(g.CurrentAmount)/float64(g.TargetAmount)*100, 2)
}

// GoalProgress is a progress update. A nil Status keeps the current one.
type GoalProgress struct {
	GoalID        int64
	CurrentAmount Cents
	Status        *GoalStatus
}

// Advice is an append-only conclusion written by an analysis stage.
type Advice struct {
	ID              int64
	CustomerID      int64
	AgentName       string
	AdviceType      string
	Content         string
	ConfidenceScore *float64
	Metadata        map[string]any
	CreatedAt       time.Time
}

// AdviceFilter narrows an advice history listing.
type AdviceFilter struct {
	CustomerID int64
	AgentName  string
	AdviceType string
	Limit      int // default 50, max 1000
}

// Interaction is an append-only record of one stage talking to another.
type Interaction struct {
	ID             int64
	SessionID      string
	CustomerID     *int64
	FromAgent      string
	ToAgent        string
	Type           string
	MessageContent string
	ContextData    map[string]any
	CreatedAt      time.Time
}

// Category is a fixed spending or income category.
type Category struct {
	Name           string
	ParentCategory string
	Description    string
	IsIncome       bool
	IsActive       bool
}

// FinanceStore is the persistence interface consumed by the tool handlers.
type FinanceStore interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int64, u CustomerUpdate) (*Customer, error)

	AddTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error)
	SpendingSummary(ctx context.Context, customerID int64, since string) (*SpendingSummary, error)

	CreateGoal(ctx context.Context, g *Goal) error
	GetGoal(ctx context.Context, id int64) (*Goal, error)
	ListGoals(ctx context.Context, customerID int64, status GoalStatus) ([]*Goal, error)
	UpdateGoalProgress(ctx context.Context, p GoalProgress) (*Goal, error)

	SaveAdvice(ctx context.Context, a *Advice) error
	ListAdvice(ctx context.Context, f AdviceFilter) ([]*Advice, error)

	LogInteraction(ctx context.Context, i *Interaction) error
	ListInteractions(ctx context.Context, sessionID string) ([]*Interaction, error)

	ListCategories(ctx context.Context, incomeOnly bool) ([]*Category, error)

	Close() error
}
