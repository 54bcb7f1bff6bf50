package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"wealthwatch/internal/cache"
	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
	"wealthwatch/internal/report"
	"wealthwatch/internal/storage"
)

const (
	DefaultReportCacheSize = 256
	DefaultReportCacheTTL  = 5 * time.Minute

	// RecentTransactions is how many transactions an Overview lists.
	RecentTransactions = 10
)

// ReportOptions sizes the report cache.
type ReportOptions struct {
	CacheSize int
	CacheTTL  time.Duration
}

// ReportService computes read-only summaries from committed ledger state.
// Results are cached per user until the next committed mutation of that
// user's data; wire Invalidate to LedgerService.OnCommit.
type ReportService struct {
	store  storage.Store
	logger *log.Logger
	cache  *cache.LRUCache[any]
	gens   *cache.Generations
	group  singleflight.Group
}

func NewReportService(store storage.Store, logger *log.Logger, opts ReportOptions) *ReportService {
	if logger == nil {
		logger = log.Default()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultReportCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultReportCacheTTL
	}
	return &ReportService{
		store:  store,
		logger: logger.WithComponent(log.ComponentReport),
		cache:  cache.NewLRUCache[any](opts.CacheSize, opts.CacheTTL),
		gens:   cache.NewGenerations(),
	}
}

func (s *ReportService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Invalidate drops every cached result of userID.
func (s *ReportService) Invalidate(userID int64) {
	gen := s.gens.Bump(userID)
	dropped := s.cache.DeletePrefix(fmt.Sprintf("u%d:", userID))
	s.logger.Debug("Report cache invalidated", log.FieldUserID, userID, "generation", gen, "dropped", dropped)
}

// cached returns the result of load for userID and name, computing it at
// most once per generation. Concurrent misses for the same key share one
// load, which is not cancelled when the caller that started it goes away.
func cached[T any](ctx context.Context, s *ReportService, userID int64, name string, load func(ctx context.Context, r storage.Reader) (T, error)) (T, error) {
	key := fmt.Sprintf("u%d:g%d:%s", userID, s.gens.Current(userID), name)
	if v, ok := s.cache.Get(key); ok {
		return v.(T), nil
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		var out T
		err := s.store.View(shared, func(ctx context.Context, r storage.Reader) error {
			var err error
			out, err = load(ctx, r)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, out)
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// MonthlySeries returns the user's income and spending per month of year.
func (s *ReportService) MonthlySeries(ctx context.Context, userID int64, year int) (core.MonthlySeries, error) {
	series, err := cached(ctx, s, userID, fmt.Sprintf("series:%d", year), func(ctx context.Context, r storage.Reader) (core.MonthlySeries, error) {
		txs, err := r.ListTransactions(ctx, storage.TransactionFilter{
			UserID: userID,
			From:   core.NewDate(year, 1, 1),
			To:     core.NewDate(year, 12, 31),
		})
		if err != nil {
			return core.MonthlySeries{}, err
		}
		return report.MonthlySeries(year, txs), nil
	})
	if err != nil {
		return core.MonthlySeries{}, fmt.Errorf("monthly series: %w", err)
	}
	return series, nil
}

// MonthlySeriesAllTime returns totals for every month with activity, oldest first.
func (s *ReportService) MonthlySeriesAllTime(ctx context.Context, userID int64) ([]core.MonthTotals, error) {
	months, err := cached(ctx, s, userID, "series:all", func(ctx context.Context, r storage.Reader) ([]core.MonthTotals, error) {
		txs, err := r.ListTransactions(ctx, storage.TransactionFilter{UserID: userID})
		if err != nil {
			return nil, err
		}
		return report.MonthlySeriesAllTime(txs), nil
	})
	if err != nil {
		return nil, fmt.Errorf("monthly series all time: %w", err)
	}
	return slices.Clone(months), nil
}

// AccountBalanceHistory replays one account's transactions from zero.
func (s *ReportService) AccountBalanceHistory(ctx context.Context, userID, accountID int64) (core.AccountHistory, error) {
	h, err := cached(ctx, s, userID, fmt.Sprintf("history:%d", accountID), func(ctx context.Context, r storage.Reader) (core.AccountHistory, error) {
		a, err := ownedAccount(ctx, r, userID, accountID)
		if err != nil {
			return core.AccountHistory{}, err
		}
		return accountHistory(ctx, r, a)
	})
	if err != nil {
		return core.AccountHistory{}, fmt.Errorf("account balance history: %w", err)
	}
	h.Points = slices.Clone(h.Points)
	return h, nil
}

// BalanceHistories returns the history of every account that has transactions.
func (s *ReportService) BalanceHistories(ctx context.Context, userID int64) ([]core.AccountHistory, error) {
	hs, err := cached(ctx, s, userID, "histories", func(ctx context.Context, r storage.Reader) ([]core.AccountHistory, error) {
		accounts, err := r.ListAccounts(ctx, userID)
		if err != nil {
			return nil, err
		}
		var out []core.AccountHistory
		for _, a := range accounts {
			h, err := accountHistory(ctx, r, a)
			if err != nil {
				return nil, err
			}
			if len(h.Points) > 0 {
				out = append(out, h)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("balance histories: %w", err)
	}
	return slices.Clone(hs), nil
}

func accountHistory(ctx context.Context, r storage.Reader, a core.Account) (core.AccountHistory, error) {
	txs, err := r.ListTransactions(ctx, storage.TransactionFilter{AccountID: a.ID})
	if err != nil {
		return core.AccountHistory{}, err
	}
	return core.AccountHistory{Account: a, Points: report.BalanceHistory(txs)}, nil
}

// BalanceByAccountType sums the user's current balances per account type.
func (s *ReportService) BalanceByAccountType(ctx context.Context, userID int64) (map[core.AccountType]decimal.Decimal, error) {
	byType, err := cached(ctx, s, userID, "types", func(ctx context.Context, r storage.Reader) (map[core.AccountType]decimal.Decimal, error) {
		accounts, err := r.ListAccounts(ctx, userID)
		if err != nil {
			return nil, err
		}
		return report.BalanceByAccountType(accounts), nil
	})
	if err != nil {
		return nil, fmt.Errorf("balance by account type: %w", err)
	}
	return maps.Clone(byType), nil
}

// BudgetRemaining returns max(0, amount - spent) for one of the user's budgets.
func (s *ReportService) BudgetRemaining(ctx context.Context, userID, budgetID int64) (decimal.Decimal, error) {
	remaining, err := cached(ctx, s, userID, fmt.Sprintf("remaining:%d", budgetID), func(ctx context.Context, r storage.Reader) (decimal.Decimal, error) {
		b, err := ownedBudget(ctx, r, userID, budgetID)
		if err != nil {
			return decimal.Zero, err
		}
		return report.BudgetRemaining(b), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("budget remaining: %w", err)
	}
	return remaining, nil
}

// BudgetSummaries lists the user's budgets with category names and remaining amounts.
func (s *ReportService) BudgetSummaries(ctx context.Context, userID int64) ([]core.BudgetSummary, error) {
	summaries, err := cached(ctx, s, userID, "budgets", func(ctx context.Context, r storage.Reader) ([]core.BudgetSummary, error) {
		budgets, err := r.ListBudgets(ctx, userID)
		if err != nil {
			return nil, err
		}
		categories, err := r.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		return report.BudgetSummaries(budgets, categories), nil
	})
	if err != nil {
		return nil, fmt.Errorf("budget summaries: %w", err)
	}
	return slices.Clone(summaries), nil
}

func (s *ReportService) recent(ctx context.Context, userID int64) ([]core.Transaction, error) {
	txs, err := cached(ctx, s, userID, "recent", func(ctx context.Context, r storage.Reader) ([]core.Transaction, error) {
		txs, err := r.ListTransactions(ctx, storage.TransactionFilter{UserID: userID})
		if err != nil {
			return nil, err
		}
		return report.Recent(txs, RecentTransactions), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(txs), nil
}

// Overview loads every dashboard section of userID concurrently. The first
// failing section cancels the others.
func (s *ReportService) Overview(ctx context.Context, userID int64, year int) (core.Overview, error) {
	start := time.Now()
	var ov core.Overview

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.View(gctx, func(ctx context.Context, r storage.Reader) error {
			var err error
			ov.User, err = r.GetUser(ctx, userID)
			return err
		})
	})
	g.Go(func() error {
		return s.store.View(gctx, func(ctx context.Context, r storage.Reader) error {
			var err error
			ov.Accounts, err = r.ListAccounts(ctx, userID)
			return err
		})
	})
	g.Go(func() error {
		return s.store.View(gctx, func(ctx context.Context, r storage.Reader) error {
			var err error
			ov.Goals, err = r.ListGoals(ctx, userID)
			return err
		})
	})
	g.Go(func() error {
		var err error
		ov.Recent, err = s.recent(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Budgets, err = s.BudgetSummaries(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Series, err = s.MonthlySeries(gctx, userID, year)
		return err
	})
	g.Go(func() error {
		var err error
		ov.BalanceByType, err = s.BalanceByAccountType(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "Failed to load overview", log.NewFields().WithUser(userID).WithError(err).ToSlice()...)
		return core.Overview{}, fmt.Errorf("overview: %w", err)
	}

	s.logger.DebugContext(ctx, "Overview loaded",
		log.FieldUserID, userID, log.FieldYear, year, log.FieldDuration, time.Since(start).Milliseconds())
	return ov, nil
}
