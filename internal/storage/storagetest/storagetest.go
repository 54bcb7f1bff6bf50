// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages run it from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
)

// Factory returns a fresh store. busyTimeout bounds the write lock wait.
type Factory func(t *testing.T, busyTimeout time.Duration) storage.Store

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, newStore Factory)
	}{
		{"SeededCategories", testSeededCategories},
		{"UserUniqueness", testUserUniqueness},
		{"NotFound", testNotFound},
		{"AccountRoundTrip", testAccountRoundTrip},
		{"TransactionOrderingAndFilters", testTransactionOrderingAndFilters},
		{"FindBudgetsOrder", testFindBudgetsOrder},
		{"DeleteBudgetDetachesTransactions", testDeleteBudgetDetaches},
		{"DeleteReferencedCategory", testDeleteReferencedCategory},
		{"DeleteAccountRemovesTransactions", testDeleteAccountCascade},
		{"FailedUpdateRollsBack", testRollback},
		{"WriteLockTimeout", testWriteLockTimeout},
		{"Outbox", testOutbox},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, newStore) })
	}
}

type fixture struct {
	user      core.User
	account   core.Account
	groceries core.Category
}

func seed(t *testing.T, s storage.Store) fixture {
	t.Helper()
	var f fixture
	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		var err error
		if f.user, err = w.CreateUser(ctx, core.User{Username: "alice", Email: "alice@example.com"}); err != nil {
			return err
		}
		if f.account, err = w.CreateAccount(ctx, core.Account{
			UserID: f.user.ID, Name: "Checking", Type: core.Checking,
			OpeningBalance: decimal.Zero, Balance: decimal.Zero,
		}); err != nil {
			return err
		}
		f.groceries, err = w.GetCategoryByName(ctx, "Groceries")
		return err
	})
	require.NoError(t, err)
	return f
}

func expense(f fixture, amount string, d core.Date) core.Transaction {
	id := f.groceries.ID
	return core.Transaction{
		UserID: f.user.ID, AccountID: f.account.ID, Type: core.Expense,
		Amount: dec(amount), Date: d, CategoryID: &id,
	}
}

func testSeededCategories(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	err := s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		cats, err := r.ListCategories(ctx)
		require.NoError(t, err)
		require.Len(t, cats, len(storage.DefaultCategories))
		for i := 1; i < len(cats); i++ {
			assert.Less(t, cats[i-1].Name, cats[i].Name, "categories must be ordered by name")
		}
		return nil
	})
	require.NoError(t, err)
}

func testUserUniqueness(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	seed(t, s)

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		_, err := w.CreateUser(ctx, core.User{Username: "alice", Email: "other@example.com"})
		return err
	})
	assert.ErrorIs(t, err, core.ErrIntegrity)

	err = s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		_, err := w.CreateUser(ctx, core.User{Username: "bob", Email: "alice@example.com"})
		return err
	})
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func testNotFound(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	err := s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		_, err := r.GetAccount(ctx, 404)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = r.GetTransaction(ctx, 404)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = r.GetBudget(ctx, 404)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = r.GetGoal(ctx, 404)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = r.GetCategoryByName(ctx, "Nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	err = s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		return w.DeleteGoal(ctx, 404)
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testAccountRoundTrip(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		return w.SetAccountBalance(ctx, f.account.ID, dec("-12.30"))
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		a, err := r.GetAccount(ctx, f.account.ID)
		require.NoError(t, err)
		assert.Equal(t, "Checking", a.Name)
		assert.Equal(t, core.Checking, a.Type)
		assert.True(t, a.Balance.Equal(dec("-12.30")), "balance = %s", a.Balance)

		accounts, err := r.ListAccounts(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Len(t, accounts, 1)
		return nil
	})
	require.NoError(t, err)
}

func testTransactionOrderingAndFilters(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)

	var ids []int64
	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		for _, tx := range []core.Transaction{
			expense(f, "3.00", core.NewDate(2025, 2, 1)),
			expense(f, "1.00", core.NewDate(2025, 1, 1)),
			expense(f, "2.00", core.NewDate(2025, 2, 1)),
			{UserID: f.user.ID, AccountID: f.account.ID, Type: core.Income, Amount: dec("9.99"), Date: core.NewDate(2025, 3, 1), Description: "salary"},
		} {
			created, err := w.CreateTransaction(ctx, tx)
			if err != nil {
				return err
			}
			ids = append(ids, created.ID)
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		all, err := r.ListTransactions(ctx, storage.TransactionFilter{UserID: f.user.ID})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []int64{ids[1], ids[0], ids[2], ids[3]}, []int64{all[0].ID, all[1].ID, all[2].ID, all[3].ID})
		assert.Nil(t, all[3].CategoryID)
		assert.Equal(t, "salary", all[3].Description)
		assert.True(t, all[3].Amount.Equal(dec("9.99")))

		feb, err := r.ListTransactions(ctx, storage.TransactionFilter{
			AccountID: f.account.ID, From: core.NewDate(2025, 2, 1), To: core.NewDate(2025, 2, 28),
		})
		require.NoError(t, err)
		assert.Len(t, feb, 2)

		n, err := r.CountTransactions(ctx, storage.TransactionFilter{AccountID: f.account.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		inUse, err := r.CategoryInUse(ctx, f.groceries.ID)
		require.NoError(t, err)
		assert.True(t, inUse)
		return nil
	})
	require.NoError(t, err)
}

func testFindBudgetsOrder(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		for _, b := range []core.Budget{
			{UserID: f.user.ID, CategoryID: f.groceries.ID, Amount: dec("100"), Spent: decimal.Zero, StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31)},
			{UserID: f.user.ID, CategoryID: f.groceries.ID, Amount: dec("50"), Spent: decimal.Zero, StartDate: core.NewDate(2025, 1, 15), EndDate: core.NewDate(2025, 2, 15)},
		} {
			if _, err := w.CreateBudget(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		both, err := r.FindBudgets(ctx, f.user.ID, f.groceries.ID, core.NewDate(2025, 1, 20))
		require.NoError(t, err)
		require.Len(t, both, 2)
		assert.Less(t, both[0].ID, both[1].ID)

		edge, err := r.FindBudgets(ctx, f.user.ID, f.groceries.ID, core.NewDate(2025, 2, 15))
		require.NoError(t, err)
		require.Len(t, edge, 1)
		assert.True(t, edge[0].Amount.Equal(dec("50")))

		none, err := r.FindBudgets(ctx, f.user.ID, f.groceries.ID, core.NewDate(2025, 2, 16))
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
	require.NoError(t, err)
}

func testDeleteBudgetDetaches(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)

	var txID, budgetID int64
	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		b, err := w.CreateBudget(ctx, core.Budget{
			UserID: f.user.ID, CategoryID: f.groceries.ID, Amount: dec("100"), Spent: decimal.Zero,
			StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31),
		})
		if err != nil {
			return err
		}
		budgetID = b.ID
		tx := expense(f, "10.00", core.NewDate(2025, 1, 5))
		tx.BudgetID = &b.ID
		created, err := w.CreateTransaction(ctx, tx)
		txID = created.ID
		return err
	})
	require.NoError(t, err)

	err = s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		return w.DeleteBudget(ctx, budgetID)
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		tx, err := r.GetTransaction(ctx, txID)
		require.NoError(t, err)
		assert.Nil(t, tx.BudgetID)
		return nil
	})
	require.NoError(t, err)
}

func testDeleteReferencedCategory(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		_, err := w.CreateTransaction(ctx, expense(f, "1.00", core.NewDate(2025, 1, 1)))
		return err
	})
	require.NoError(t, err)

	err = s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		return w.DeleteCategory(ctx, f.groceries.ID)
	})
	assert.ErrorIs(t, err, core.ErrIntegrity)

	var fresh core.Category
	err = s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		var err error
		fresh, err = w.CreateCategory(ctx, core.Category{Name: "Pets"})
		return err
	})
	require.NoError(t, err)
	err = s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		return w.DeleteCategory(ctx, fresh.ID)
	})
	assert.NoError(t, err)
}

func testDeleteAccountCascade(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		if _, err := w.CreateTransaction(ctx, expense(f, "1.00", core.NewDate(2025, 1, 1))); err != nil {
			return err
		}
		return w.DeleteAccount(ctx, f.account.ID)
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		n, err := r.CountTransactions(ctx, storage.TransactionFilter{UserID: f.user.ID})
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		if _, err := w.CreateTransaction(ctx, expense(f, "5.00", core.NewDate(2025, 1, 1))); err != nil {
			return err
		}
		if err := w.SetAccountBalance(ctx, f.account.ID, dec("-5.00")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(context.Background(), func(ctx context.Context, r storage.Reader) error {
		a, err := r.GetAccount(ctx, f.account.ID)
		require.NoError(t, err)
		assert.True(t, a.Balance.IsZero(), "balance must be untouched, got %s", a.Balance)
		n, err := r.CountTransactions(ctx, storage.TransactionFilter{AccountID: f.account.ID})
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)
}

func testWriteLockTimeout(t *testing.T, newStore Factory) {
	s := newStore(t, 50*time.Millisecond)
	seed(t, s)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := s.Update(context.Background(), func(ctx context.Context, w storage.Writer) error {
		return nil
	})
	assert.ErrorIs(t, err, core.ErrConcurrency)

	close(release)
	require.NoError(t, <-done)
}

func testOutbox(t *testing.T, newStore Factory) {
	s := newStore(t, time.Second)
	f := seed(t, s)
	ctx := context.Background()

	e1 := core.NewLedgerEvent(core.EventAccountCreated, f.user.ID)
	e1.AccountID = f.account.ID
	e2 := core.NewLedgerEvent(core.EventTransactionCreated, f.user.ID)
	e2.Amount = dec("-4.20")
	err := s.Update(ctx, func(ctx context.Context, w storage.Writer) error {
		if err := w.EnqueueEvent(ctx, e1); err != nil {
			return err
		}
		return w.EnqueueEvent(ctx, e2)
	})
	require.NoError(t, err)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, e1.EventID, pending[0].Event.EventID)
	assert.Equal(t, f.account.ID, pending[0].Event.AccountID)
	assert.True(t, pending[1].Event.Amount.Equal(dec("-4.20")))

	limited, err := s.PendingEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.MarkEventPublished(ctx, pending[0].ID))
	require.NoError(t, s.RecordEventAttempt(ctx, pending[1].ID, "connection refused"))
	require.NoError(t, s.MarkEventFailed(ctx, pending[1].ID, "connection refused"))

	stats, err := s.OutboxStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.OutboxStats{Published: 1, Failed: 1}, stats)

	n, err := s.RetryFailedEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Zero(t, again[0].Attempts)

	removed, err := s.CleanupPublishedEvents(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	assert.ErrorIs(t, s.MarkEventPublished(ctx, 9999), core.ErrNotFound)
}
