package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v int64) *int64 {
	return &v
}

func TestApplyAndReverse(t *testing.T) {
	cases := []struct {
		name    string
		balance string
		typ     core.TransactionType
		amount  string
		want    string
	}{
		{"income", "100.00", core.Income, "50.00", "150.00"},
		{"expense", "200.00", core.Expense, "75.50", "124.50"},
		{"overdraft", "10.00", core.Expense, "25.00", "-15.00"},
		{"from zero", "0", core.Income, "0.01", "0.01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Apply(dec(tc.balance), tc.typ, dec(tc.amount))
			assert.True(t, got.Equal(dec(tc.want)), "Apply = %s, want %s", got, tc.want)

			back := Reverse(got, tc.typ, dec(tc.amount))
			assert.True(t, back.Equal(dec(tc.balance)), "Reverse = %s, want %s", back, tc.balance)
		})
	}
}

func TestReplayIsOrderIndependent(t *testing.T) {
	txs := []core.Transaction{
		{ID: 1, Type: core.Income, Amount: dec("1000.00")},
		{ID: 2, Type: core.Expense, Amount: dec("12.34")},
		{ID: 3, Type: core.Expense, Amount: dec("0.66")},
		{ID: 4, Type: core.Income, Amount: dec("7.77")},
		{ID: 5, Type: core.Expense, Amount: dec("999.99")},
	}
	want := Replay(dec("50.00"), txs)
	require.True(t, want.Equal(dec("44.78")), "Replay = %s", want)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]core.Transaction(nil), txs...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.True(t, Replay(dec("50.00"), shuffled).Equal(want))
	}
}

func TestMatchBudget(t *testing.T) {
	groceries := int64(3)
	budgets := []core.Budget{
		{ID: 1, UserID: 1, CategoryID: 4, StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31)},
		{ID: 2, UserID: 2, CategoryID: groceries, StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31)},
		{ID: 3, UserID: 1, CategoryID: groceries, StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31)},
		{ID: 4, UserID: 1, CategoryID: groceries, StartDate: core.NewDate(2025, 1, 15), EndDate: core.NewDate(2025, 2, 15)},
	}

	t.Run("first match wins", func(t *testing.T) {
		tx := core.Transaction{UserID: 1, Type: core.Expense, CategoryID: &groceries, Date: core.NewDate(2025, 1, 20)}
		b, ok := MatchBudget(tx, budgets)
		require.True(t, ok)
		assert.Equal(t, int64(3), b.ID)
	})

	t.Run("window bounds inclusive", func(t *testing.T) {
		tx := core.Transaction{UserID: 1, Type: core.Expense, CategoryID: &groceries, Date: core.NewDate(2025, 2, 15)}
		b, ok := MatchBudget(tx, budgets)
		require.True(t, ok)
		assert.Equal(t, int64(4), b.ID)
	})

	t.Run("outside every window", func(t *testing.T) {
		tx := core.Transaction{UserID: 1, Type: core.Expense, CategoryID: &groceries, Date: core.NewDate(2025, 3, 1)}
		_, ok := MatchBudget(tx, budgets)
		assert.False(t, ok)
	})

	t.Run("other user", func(t *testing.T) {
		tx := core.Transaction{UserID: 9, Type: core.Expense, CategoryID: &groceries, Date: core.NewDate(2025, 1, 20)}
		_, ok := MatchBudget(tx, budgets)
		assert.False(t, ok)
	})

	t.Run("income never matches", func(t *testing.T) {
		tx := core.Transaction{UserID: 1, Type: core.Income, CategoryID: ptr(groceries), Date: core.NewDate(2025, 1, 20)}
		_, ok := MatchBudget(tx, budgets)
		assert.False(t, ok)
	})
}

func TestAttributeRelease(t *testing.T) {
	b := core.Budget{Amount: dec("150.00")}

	b = Attribute(b, dec("100.00"))
	assert.True(t, b.Spent.Equal(dec("100.00")))
	assert.True(t, b.Remaining().Equal(dec("50.00")))

	b = Attribute(b, dec("80.00"))
	assert.True(t, b.Spent.Equal(dec("180.00")))
	assert.True(t, b.Remaining().IsZero())

	b = Release(b, dec("80.00"))
	assert.True(t, b.Spent.Equal(dec("100.00")))

	b = Release(b, dec("500.00"))
	assert.True(t, b.Spent.IsZero(), "spent must floor at zero, got %s", b.Spent)
}
