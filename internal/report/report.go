// Package report turns ledger rows into summaries. Every function is pure:
// inputs are never modified and equal inputs give equal outputs.
package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
)

// MonthlySeries buckets the year's transactions by calendar month.
// Transactions from other years are ignored.
func MonthlySeries(year int, txs []core.Transaction) core.MonthlySeries {
	s := core.MonthlySeries{Year: year, Labels: core.MonthLabels}
	for i := range s.Income {
		s.Income[i] = decimal.Zero
		s.Spending[i] = decimal.Zero
	}
	for _, t := range txs {
		if t.Date.Year() != year {
			continue
		}
		m := t.Date.Month() - 1
		switch t.Type {
		case core.Income:
			s.Income[m] = s.Income[m].Add(t.Amount)
		case core.Expense:
			s.Spending[m] = s.Spending[m].Add(t.Amount)
		}
	}
	return s
}

// MonthlySeriesAllTime returns one entry per month with at least one
// transaction, ascending by YYYY-MM key.
func MonthlySeriesAllTime(txs []core.Transaction) []core.MonthTotals {
	byKey := make(map[string]*core.MonthTotals)
	for _, t := range txs {
		key := fmt.Sprintf("%04d-%02d", t.Date.Year(), t.Date.Month())
		mt, ok := byKey[key]
		if !ok {
			mt = &core.MonthTotals{
				Key:     key,
				Year:    t.Date.Year(),
				Month:   t.Date.Month(),
				Income:  decimal.Zero,
				Expense: decimal.Zero,
			}
			byKey[key] = mt
		}
		switch t.Type {
		case core.Income:
			mt.Income = mt.Income.Add(t.Amount)
		case core.Expense:
			mt.Expense = mt.Expense.Add(t.Amount)
		}
	}

	out := make([]core.MonthTotals, 0, len(byKey))
	for _, mt := range byKey {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SortChronological orders transactions by date, ties broken by id.
func SortChronological(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// BalanceHistory replays txs from a zero baseline and returns the running
// balance after each one, in chronological order.
func BalanceHistory(txs []core.Transaction) []core.BalancePoint {
	ordered := SortChronological(txs)
	points := make([]core.BalancePoint, 0, len(ordered))
	balance := decimal.Zero
	for _, t := range ordered {
		balance = balance.Add(t.Signed())
		points = append(points, core.BalancePoint{
			Date:          t.Date,
			TransactionID: t.ID,
			Balance:       balance,
		})
	}
	return points
}

// BalanceByAccountType sums current balances per account type. Only types
// with at least one account appear.
func BalanceByAccountType(accounts []core.Account) map[core.AccountType]decimal.Decimal {
	out := make(map[core.AccountType]decimal.Decimal)
	for _, a := range accounts {
		sum, ok := out[a.Type]
		if !ok {
			sum = decimal.Zero
		}
		out[a.Type] = sum.Add(a.Balance)
	}
	return out
}

// BudgetRemaining is max(0, amount - spent).
func BudgetRemaining(b core.Budget) decimal.Decimal {
	return b.Remaining()
}

// BudgetSummaries joins budgets with their category names. Unknown
// categories are left blank.
func BudgetSummaries(budgets []core.Budget, categories []core.Category) []core.BudgetSummary {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	out := make([]core.BudgetSummary, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, core.BudgetSummary{
			Budget:    b,
			Category:  names[b.CategoryID],
			Remaining: b.Remaining(),
		})
	}
	return out
}

// Recent returns up to n transactions, newest first.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	if n <= 0 {
		return nil
	}
	ordered := SortChronological(txs)
	out := make([]core.Transaction, 0, min(n, len(ordered)))
	for i := len(ordered) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, ordered[i])
	}
	return out
}
