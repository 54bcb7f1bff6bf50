package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
)

// Ports implemented by every persistence backend.
type (
	// Reader exposes committed ledger state. Lists are returned in a stable
	// order: transactions by (date, id), everything else by id unless noted.
	Reader interface {
		GetUser(ctx context.Context, id int64) (core.User, error)

		GetAccount(ctx context.Context, id int64) (core.Account, error)
		ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)

		GetCategory(ctx context.Context, id int64) (core.Category, error)
		GetCategoryByName(ctx context.Context, name string) (core.Category, error)
		// ListCategories returns categories ordered by name.
		ListCategories(ctx context.Context) ([]core.Category, error)
		CategoryInUse(ctx context.Context, id int64) (bool, error)

		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		CountTransactions(ctx context.Context, f TransactionFilter) (int, error)

		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
		// FindBudgets returns the user's budgets for the category whose window
		// contains date, lowest id first.
		FindBudgets(ctx context.Context, userID, categoryID int64, date core.Date) ([]core.Budget, error)

		GetGoal(ctx context.Context, id int64) (core.Goal, error)
		ListGoals(ctx context.Context, userID int64) ([]core.Goal, error)
	}

	// Writer is a Reader bound to an open write transaction.
	Writer interface {
		Reader

		CreateUser(ctx context.Context, u core.User) (core.User, error)

		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		SetAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
		DeleteAccount(ctx context.Context, id int64) error

		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error

		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error

		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		SetBudgetSpent(ctx context.Context, id int64, spent decimal.Decimal) error
		// DeleteBudget removes the budget and clears it from attributed transactions.
		DeleteBudget(ctx context.Context, id int64) error

		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		DeleteGoal(ctx context.Context, id int64) error

		EnqueueEvent(ctx context.Context, e core.LedgerEvent) error
	}

	// Outbox is the queue of ledger events awaiting publication.
	Outbox interface {
		PendingEvents(ctx context.Context, limit int) ([]OutboxEntry, error)
		MarkEventPublished(ctx context.Context, id int64) error
		RecordEventAttempt(ctx context.Context, id int64, reason string) error
		MarkEventFailed(ctx context.Context, id int64, reason string) error
		RetryFailedEvents(ctx context.Context) (int64, error)
		CleanupPublishedEvents(ctx context.Context, before time.Time) (int64, error)
		OutboxStats(ctx context.Context) (OutboxStats, error)
	}

	// Store runs units of work against a backend.
	Store interface {
		// Update runs fn in one write transaction. Every mutation made through
		// the Writer commits together, or none does when fn or the commit fails.
		// Concurrent Updates are serialized.
		Update(ctx context.Context, fn func(ctx context.Context, w Writer) error) error
		// View runs fn against committed state only.
		View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
		Outbox
		Close() error
	}
)

// TransactionFilter selects transactions. Zero fields do not filter.
type TransactionFilter struct {
	UserID    int64
	AccountID int64
	BudgetID  int64
	From      core.Date // inclusive
	To        core.Date // inclusive
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.AccountID != 0 && t.AccountID != f.AccountID {
		return false
	}
	if f.BudgetID != 0 && (t.BudgetID == nil || *t.BudgetID != f.BudgetID) {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To.Time) {
		return false
	}
	return true
}

const (
	EventPending   = "pending"
	EventPublished = "published"
	EventFailed    = "failed"
)

// OutboxEntry is a queued ledger event with its delivery bookkeeping.
type OutboxEntry struct {
	ID          int64
	Event       core.LedgerEvent
	Status      string
	Attempts    int64
	LastError   string
	CreatedAt   time.Time
	ProcessedAt time.Time // zero while pending
}

// OutboxStats counts outbox entries by status.
type OutboxStats struct {
	Pending   int64
	Published int64
	Failed    int64
}

// DefaultCategories is the category registry every new store starts with.
var DefaultCategories = []string{
	"Home and Utilities",
	"Transportation",
	"Groceries",
	"Health",
	"Restaurants and Dining",
	"Shopping and Entertainment",
	"Cash and Checks",
	"Business Expenses",
	"Education",
	"Finance",
}
