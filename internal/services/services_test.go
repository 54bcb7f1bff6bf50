package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
	"wealthwatch/internal/storage"
	"wealthwatch/internal/storage/memory"
	"wealthwatch/internal/storage/sqlite"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(id int64) *int64 { return &id }

// forEachBackend runs fn once per storage backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, store storage.Store)) {
	t.Helper()
	backends := []struct {
		name string
		open func(t *testing.T) storage.Store
	}{
		{"memory", func(t *testing.T) storage.Store { return memory.New() }},
		{"sqlite", func(t *testing.T) storage.Store {
			repo, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"), sqlite.Options{})
			require.NoError(t, err)
			return repo
		}},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			t.Cleanup(func() { _ = store.Close() })
			fn(t, store)
		})
	}
}

type env struct {
	ctx       context.Context
	store     storage.Store
	ledger    *LedgerService
	reports   *ReportService
	user      core.User
	checking  core.Account
	groceries core.Category
}

func newEnv(t *testing.T, store storage.Store, opts LedgerOptions) *env {
	t.Helper()
	ctx := context.Background()
	logger := log.Discard()

	e := &env{
		ctx:     ctx,
		store:   store,
		ledger:  NewLedgerService(store, logger, opts),
		reports: NewReportService(store, logger, ReportOptions{}),
	}
	e.ledger.OnCommit(e.reports.Invalidate)

	var err error
	e.user, err = e.ledger.CreateUser(ctx, "ada", "ada@example.com", "Ada", "Lovelace")
	require.NoError(t, err)
	e.checking, err = e.ledger.CreateAccount(ctx, e.user.ID, "Checking", core.Checking, dec("1000.00"))
	require.NoError(t, err)
	e.groceries, err = e.ledger.CategoryByName(ctx, "Groceries")
	require.NoError(t, err)
	return e
}

func (e *env) expense(t *testing.T, amount string, d core.Date) core.Transaction {
	t.Helper()
	tx, err := e.ledger.CreateTransaction(e.ctx, NewTransaction{
		UserID:     e.user.ID,
		AccountID:  e.checking.ID,
		Type:       core.Expense,
		Amount:     dec(amount),
		Date:       d,
		CategoryID: ptr(e.groceries.ID),
	})
	require.NoError(t, err)
	return tx
}

func (e *env) income(t *testing.T, amount string, d core.Date) core.Transaction {
	t.Helper()
	tx, err := e.ledger.CreateTransaction(e.ctx, NewTransaction{
		UserID:    e.user.ID,
		AccountID: e.checking.ID,
		Type:      core.Income,
		Amount:    dec(amount),
		Date:      d,
	})
	require.NoError(t, err)
	return tx
}

func (e *env) budget(t *testing.T, amount string, start, end core.Date) core.Budget {
	t.Helper()
	b, err := e.ledger.CreateBudget(e.ctx, NewBudget{
		UserID:     e.user.ID,
		CategoryID: e.groceries.ID,
		Amount:     dec(amount),
		StartDate:  start,
		EndDate:    end,
	})
	require.NoError(t, err)
	return b
}

func (e *env) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	a, err := e.ledger.GetAccount(e.ctx, e.user.ID, e.checking.ID)
	require.NoError(t, err)
	return a.Balance
}

func (e *env) spent(t *testing.T, budgetID int64) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.GetBudget(e.ctx, e.user.ID, budgetID)
	require.NoError(t, err)
	return b.Spent
}

// requireBalanced asserts the stored balance of every account agrees with
// its replayed history.
func (e *env) requireBalanced(t *testing.T) {
	t.Helper()
	drifts, err := NewReconciler(e.store, log.Discard()).ReconcileUser(e.ctx, e.user.ID)
	require.NoError(t, err)
	require.Empty(t, drifts)
}
