package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
)

func TestMonthlySeriesHasTwelveMonths(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})
		e.income(t, "2000.00", core.NewDate(2024, 1, 31))
		e.expense(t, "45.10", core.NewDate(2024, 3, 2))
		e.expense(t, "4.90", core.NewDate(2024, 3, 20))
		e.expense(t, "99.00", core.NewDate(2023, 12, 31))

		series, err := e.reports.MonthlySeries(e.ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.Equal(t, core.MonthLabels, series.Labels)
		assert.Len(t, series.Income, 12)
		assert.True(t, series.Income[0].Equal(dec("2000.00")))
		assert.True(t, series.Spending[2].Equal(dec("50.00")))
		for m := 3; m < 12; m++ {
			assert.True(t, series.Income[m].IsZero())
			assert.True(t, series.Spending[m].IsZero())
		}

		months, err := e.reports.MonthlySeriesAllTime(e.ctx, e.user.ID)
		require.NoError(t, err)
		var keys []string
		for _, m := range months {
			keys = append(keys, m.Key)
		}
		assert.Equal(t, []string{"2023-12", "2024-01", "2024-03"}, keys)
	})
}

func TestReportsSeeCommittedMutations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})

		series, err := e.reports.MonthlySeries(e.ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.True(t, series.Spending[2].IsZero())

		e.expense(t, "12.00", day)

		series, err = e.reports.MonthlySeries(e.ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.True(t, series.Spending[2].Equal(dec("12.00")), "cached series served after commit")

		// unchanged data is served from the cache
		_, err = e.reports.MonthlySeries(e.ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.Positive(t, e.reports.CacheStats().Hits)
	})
}

func TestAccountBalanceHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})
		later := e.income(t, "100.00", day.AddDays(2))
		first := e.expense(t, "30.00", day)
		second := e.expense(t, "20.00", day)

		h, err := e.reports.AccountBalanceHistory(e.ctx, e.user.ID, e.checking.ID)
		require.NoError(t, err)
		require.Len(t, h.Points, 3)
		assert.Equal(t, []int64{first.ID, second.ID, later.ID},
			[]int64{h.Points[0].TransactionID, h.Points[1].TransactionID, h.Points[2].TransactionID})
		assert.True(t, h.Points[0].Balance.Equal(dec("-30.00")))
		assert.True(t, h.Points[1].Balance.Equal(dec("-50.00")))
		assert.True(t, h.Points[2].Balance.Equal(dec("50.00")))

		// the replay plus the opening balance is the stored balance
		last := h.Points[len(h.Points)-1].Balance
		assert.True(t, e.checking.OpeningBalance.Add(last).Equal(e.balance(t)))

		e.reports.Invalidate(e.user.ID)
		again, err := e.reports.AccountBalanceHistory(e.ctx, e.user.ID, e.checking.ID)
		require.NoError(t, err)
		assert.Equal(t, h.Points, again.Points)

		other, err := e.ledger.CreateUser(e.ctx, "eve", "eve@example.com", "", "")
		require.NoError(t, err)
		_, err = e.reports.AccountBalanceHistory(e.ctx, other.ID, e.checking.ID)
		assert.ErrorIs(t, err, core.ErrPermission)
	})
}

func TestBalanceByAccountType(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})
		_, err := e.ledger.CreateAccount(e.ctx, e.user.ID, "Joint", core.Checking, dec("250.50"))
		require.NoError(t, err)
		_, err = e.ledger.CreateAccount(e.ctx, e.user.ID, "Visa", core.Credit, dec("-300.00"))
		require.NoError(t, err)

		byType, err := e.reports.BalanceByAccountType(e.ctx, e.user.ID)
		require.NoError(t, err)
		assert.Len(t, byType, 2)
		assert.True(t, byType[core.Checking].Equal(dec("1250.50")))
		assert.True(t, byType[core.Credit].Equal(dec("-300.00")))

		// callers get their own copy
		delete(byType, core.Credit)
		byType, err = e.reports.BalanceByAccountType(e.ctx, e.user.ID)
		require.NoError(t, err)
		assert.Len(t, byType, 2)
	})
}

func TestBudgetSummariesAndOverview(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})
		b := e.budget(t, "150.00", day.AddDays(-5), day.AddDays(5))
		e.expense(t, "200.00", day)
		e.income(t, "80.00", day)
		_, err := e.ledger.CreateGoal(e.ctx, e.user.ID, "Car", dec("5000.00"))
		require.NoError(t, err)

		summaries, err := e.reports.BudgetSummaries(e.ctx, e.user.ID)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, b.ID, summaries[0].Budget.ID)
		assert.Equal(t, "Groceries", summaries[0].Category)
		assert.True(t, summaries[0].Budget.Spent.Equal(dec("200.00")))
		assert.True(t, summaries[0].Remaining.IsZero())

		ov, err := e.reports.Overview(e.ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.Equal(t, e.user.ID, ov.User.ID)
		assert.Len(t, ov.Accounts, 1)
		assert.Len(t, ov.Recent, 2)
		assert.Len(t, ov.Budgets, 1)
		assert.Len(t, ov.Goals, 1)
		assert.True(t, ov.Series.Spending[2].Equal(dec("200.00")))
		assert.True(t, ov.BalanceByType[core.Checking].Equal(dec("880.00")))

		histories, err := e.reports.BalanceHistories(e.ctx, e.user.ID)
		require.NoError(t, err)
		require.Len(t, histories, 1)
		assert.Len(t, histories[0].Points, 2)

		_, err = e.reports.Overview(e.ctx, 9999, 2024)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

// cancellingStore cancels the calling request while a read is running.
type cancellingStore struct {
	storage.Store
	cancel  context.CancelFunc
	loadErr error
}

func (s *cancellingStore) View(ctx context.Context, fn func(ctx context.Context, r storage.Reader) error) error {
	s.cancel()
	s.loadErr = ctx.Err()
	return s.Store.View(ctx, fn)
}

func TestSharedLoadOutlivesCallerCancellation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})
		e.expense(t, "12.00", day)

		ctx, cancel := context.WithCancel(e.ctx)
		defer cancel()
		wrapped := &cancellingStore{Store: store, cancel: cancel}
		reports := NewReportService(wrapped, nil, ReportOptions{})

		series, err := reports.MonthlySeries(ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.NoError(t, wrapped.loadErr, "load context cancelled with its first caller")
		assert.True(t, series.Spending[2].Equal(dec("12.00")))

		// the completed load is cached for everyone else
		wrapped.cancel = func() {}
		_, err = reports.MonthlySeries(e.ctx, e.user.ID, 2024)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), reports.CacheStats().Hits)
	})
}
