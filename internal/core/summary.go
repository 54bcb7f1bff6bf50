package core

import "github.com/shopspring/decimal"

// MonthLabels are the fixed labels of a yearly series, January first.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthlySeries holds income and spending per calendar month of one year.
// Months without transactions are zero.
type MonthlySeries struct {
	Year     int
	Labels   [12]string
	Income   [12]decimal.Decimal
	Spending [12]decimal.Decimal
}

// MonthTotals is one active month of the all-time series.
type MonthTotals struct {
	Key     string // YYYY-MM
	Year    int
	Month   int // 1-12
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// BalancePoint is the running balance right after a transaction.
type BalancePoint struct {
	Date          Date
	TransactionID int64
	Balance       decimal.Decimal
}

// AccountHistory is the replayed balance series of one account.
type AccountHistory struct {
	Account Account
	Points  []BalancePoint
}

// BudgetSummary is a budget joined with its category name.
type BudgetSummary struct {
	Budget    Budget
	Category  string
	Remaining decimal.Decimal
}

// Overview collects everything a dashboard shows for one user.
type Overview struct {
	User          User
	Accounts      []Account
	Recent        []Transaction
	Budgets       []BudgetSummary
	Goals         []Goal
	Series        MonthlySeries
	BalanceByType map[AccountType]decimal.Decimal
}

// Drift reports a stored balance that disagrees with the replayed history.
type Drift struct {
	AccountID int64
	Stored    decimal.Decimal
	Replayed  decimal.Decimal
}

// Delta is Stored minus Replayed.
func (d Drift) Delta() decimal.Decimal {
	return d.Stored.Sub(d.Replayed)
}

// Balanced reports whether the stored balance matches the replay.
func (d Drift) Balanced() bool {
	return d.Stored.Equal(d.Replayed)
}
