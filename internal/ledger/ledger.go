// Package ledger holds the balance and budget arithmetic applied when a
// transaction is recorded or removed. It never touches storage; callers run
// these functions inside one unit of work.
package ledger

import (
	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
)

// Apply returns the balance after recording a transaction of the given type.
// Balances may go negative; overdrafts are not rejected.
func Apply(balance decimal.Decimal, typ core.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if typ == core.Expense {
		return balance.Sub(amount)
	}
	return balance.Add(amount)
}

// Reverse undoes Apply for the same type and amount.
func Reverse(balance decimal.Decimal, typ core.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if typ == core.Expense {
		return balance.Add(amount)
	}
	return balance.Sub(amount)
}

// Replay returns opening plus the signed sum of txs.
func Replay(opening decimal.Decimal, txs []core.Transaction) decimal.Decimal {
	balance := opening
	for _, t := range txs {
		balance = Apply(balance, t.Type, t.Amount)
	}
	return balance
}

// MatchBudget picks the budget an expense is attributed to. Candidates are
// expected in store order; the first one owned by the same user, for the same
// category, whose window contains the date wins. Income never matches.
func MatchBudget(t core.Transaction, candidates []core.Budget) (core.Budget, bool) {
	if t.Type != core.Expense || t.CategoryID == nil {
		return core.Budget{}, false
	}
	for _, b := range candidates {
		if b.UserID == t.UserID && b.CategoryID == *t.CategoryID && b.Contains(t.Date) {
			return b, true
		}
	}
	return core.Budget{}, false
}

// Attribute adds an expense to the budget's spent total.
func Attribute(b core.Budget, amount decimal.Decimal) core.Budget {
	b.Spent = b.Spent.Add(amount)
	return b
}

// Release removes an expense from the budget's spent total, never below zero.
func Release(b core.Budget, amount decimal.Decimal) core.Budget {
	b.Spent = b.Spent.Sub(amount)
	if b.Spent.IsNegative() {
		b.Spent = decimal.Zero
	}
	return b
}
