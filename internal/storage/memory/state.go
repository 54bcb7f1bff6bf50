package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
)

var errReadOnly = errors.New("write attempted in a read-only view")

type state struct {
	userSeq, accountSeq, categorySeq, transactionSeq, budgetSeq, goalSeq, eventSeq int64

	users        map[int64]core.User
	accounts     map[int64]core.Account
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	budgets      map[int64]core.Budget
	goals        map[int64]core.Goal
	events       []storage.OutboxEntry
}

func newState() *state {
	return &state{
		users:        map[int64]core.User{},
		accounts:     map[int64]core.Account{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
		budgets:      map[int64]core.Budget{},
		goals:        map[int64]core.Goal{},
	}
}

// clone copies every table. Stored values are never mutated in place, so a
// shallow copy per map is enough.
func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.accounts = maps.Clone(s.accounts)
	c.categories = maps.Clone(s.categories)
	c.transactions = maps.Clone(s.transactions)
	c.budgets = maps.Clone(s.budgets)
	c.goals = maps.Clone(s.goals)
	c.events = append([]storage.OutboxEntry(nil), s.events...)
	return &c
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTransaction(t core.Transaction) core.Transaction {
	t.CategoryID = copyID(t.CategoryID)
	t.BudgetID = copyID(t.BudgetID)
	return t
}

func integrity(op, format string, args ...any) error {
	return &core.IntegrityError{Op: op, Err: fmt.Errorf(format, args...)}
}

func sortedByID[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// view implements storage.Writer over one state snapshot.
type view struct {
	st       *state
	readOnly bool
}

var _ storage.Writer = (*view)(nil)

func (v *view) writable() error {
	if v.readOnly {
		return errReadOnly
	}
	return nil
}

// Users

func (v *view) GetUser(_ context.Context, id int64) (core.User, error) {
	u, ok := v.st.users[id]
	if !ok {
		return core.User{}, &core.NotFoundError{Entity: "user", ID: id}
	}
	return u, nil
}

func (v *view) CreateUser(_ context.Context, u core.User) (core.User, error) {
	if err := v.writable(); err != nil {
		return core.User{}, err
	}
	for _, other := range v.st.users {
		if other.Username == u.Username {
			return core.User{}, integrity("create user", "username %q already exists", u.Username)
		}
		if other.Email == u.Email {
			return core.User{}, integrity("create user", "email %q already exists", u.Email)
		}
	}
	v.st.userSeq++
	u.ID = v.st.userSeq
	v.st.users[u.ID] = u
	return u, nil
}

// Accounts

func (v *view) GetAccount(_ context.Context, id int64) (core.Account, error) {
	a, ok := v.st.accounts[id]
	if !ok {
		return core.Account{}, &core.NotFoundError{Entity: "account", ID: id}
	}
	return a, nil
}

func (v *view) ListAccounts(_ context.Context, userID int64) ([]core.Account, error) {
	return sortedByID(v.st.accounts, func(a core.Account) bool { return a.UserID == userID }), nil
}

func (v *view) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := v.writable(); err != nil {
		return core.Account{}, err
	}
	if _, ok := v.st.users[a.UserID]; !ok {
		return core.Account{}, integrity("create account", "user %d does not exist", a.UserID)
	}
	v.st.accountSeq++
	a.ID = v.st.accountSeq
	v.st.accounts[a.ID] = a
	return a, nil
}

func (v *view) SetAccountBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	if err := v.writable(); err != nil {
		return err
	}
	a, ok := v.st.accounts[id]
	if !ok {
		return &core.NotFoundError{Entity: "account", ID: id}
	}
	a.Balance = balance
	v.st.accounts[id] = a
	return nil
}

// DeleteAccount removes the account and, like the SQL schema, its transactions.
func (v *view) DeleteAccount(_ context.Context, id int64) error {
	if err := v.writable(); err != nil {
		return err
	}
	if _, ok := v.st.accounts[id]; !ok {
		return &core.NotFoundError{Entity: "account", ID: id}
	}
	delete(v.st.accounts, id)
	for tid, t := range v.st.transactions {
		if t.AccountID == id {
			delete(v.st.transactions, tid)
		}
	}
	return nil
}

// Categories

func (v *view) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := v.st.categories[id]
	if !ok {
		return core.Category{}, &core.NotFoundError{Entity: "category", ID: id}
	}
	return c, nil
}

func (v *view) GetCategoryByName(_ context.Context, name string) (core.Category, error) {
	for _, c := range v.st.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, &core.NotFoundError{Entity: "category " + name}
}

func (v *view) ListCategories(_ context.Context) ([]core.Category, error) {
	out := sortedByID(v.st.categories, func(core.Category) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CategoryInUse(_ context.Context, id int64) (bool, error) {
	for _, t := range v.st.transactions {
		if t.CategoryID != nil && *t.CategoryID == id {
			return true, nil
		}
	}
	for _, b := range v.st.budgets {
		if b.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := v.writable(); err != nil {
		return core.Category{}, err
	}
	for _, other := range v.st.categories {
		if other.Name == c.Name {
			return core.Category{}, integrity("create category", "category %q already exists", c.Name)
		}
	}
	v.st.categorySeq++
	c.ID = v.st.categorySeq
	v.st.categories[c.ID] = c
	return c, nil
}

func (v *view) DeleteCategory(ctx context.Context, id int64) error {
	if err := v.writable(); err != nil {
		return err
	}
	if _, ok := v.st.categories[id]; !ok {
		return &core.NotFoundError{Entity: "category", ID: id}
	}
	if inUse, _ := v.CategoryInUse(ctx, id); inUse {
		return integrity("delete category", "category %d is referenced", id)
	}
	delete(v.st.categories, id)
	return nil
}

// Transactions

func (v *view) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	t, ok := v.st.transactions[id]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{Entity: "transaction", ID: id}
	}
	return copyTransaction(t), nil
}

func (v *view) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range v.st.transactions {
		if f.Matches(t) {
			out = append(out, copyTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) CountTransactions(_ context.Context, f storage.TransactionFilter) (int, error) {
	n := 0
	for _, t := range v.st.transactions {
		if f.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (v *view) checkTransactionRefs(op string, t core.Transaction) error {
	if _, ok := v.st.users[t.UserID]; !ok {
		return integrity(op, "user %d does not exist", t.UserID)
	}
	if _, ok := v.st.accounts[t.AccountID]; !ok {
		return integrity(op, "account %d does not exist", t.AccountID)
	}
	if t.CategoryID != nil {
		if _, ok := v.st.categories[*t.CategoryID]; !ok {
			return integrity(op, "category %d does not exist", *t.CategoryID)
		}
	}
	if t.BudgetID != nil {
		if _, ok := v.st.budgets[*t.BudgetID]; !ok {
			return integrity(op, "budget %d does not exist", *t.BudgetID)
		}
	}
	if (t.Type == core.Expense) != (t.CategoryID != nil) {
		return integrity(op, "category must be set for expenses only")
	}
	return nil
}

func (v *view) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := v.writable(); err != nil {
		return core.Transaction{}, err
	}
	if err := v.checkTransactionRefs("create transaction", t); err != nil {
		return core.Transaction{}, err
	}
	v.st.transactionSeq++
	t.ID = v.st.transactionSeq
	t = copyTransaction(t)
	v.st.transactions[t.ID] = t
	return copyTransaction(t), nil
}

func (v *view) UpdateTransaction(_ context.Context, t core.Transaction) error {
	if err := v.writable(); err != nil {
		return err
	}
	old, ok := v.st.transactions[t.ID]
	if !ok {
		return &core.NotFoundError{Entity: "transaction", ID: t.ID}
	}
	t.UserID = old.UserID
	if err := v.checkTransactionRefs("update transaction", t); err != nil {
		return err
	}
	v.st.transactions[t.ID] = copyTransaction(t)
	return nil
}

func (v *view) DeleteTransaction(_ context.Context, id int64) error {
	if err := v.writable(); err != nil {
		return err
	}
	if _, ok := v.st.transactions[id]; !ok {
		return &core.NotFoundError{Entity: "transaction", ID: id}
	}
	delete(v.st.transactions, id)
	return nil
}

// Budgets

func (v *view) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	b, ok := v.st.budgets[id]
	if !ok {
		return core.Budget{}, &core.NotFoundError{Entity: "budget", ID: id}
	}
	return b, nil
}

func (v *view) ListBudgets(_ context.Context, userID int64) ([]core.Budget, error) {
	return sortedByID(v.st.budgets, func(b core.Budget) bool { return b.UserID == userID }), nil
}

func (v *view) FindBudgets(_ context.Context, userID, categoryID int64, date core.Date) ([]core.Budget, error) {
	return sortedByID(v.st.budgets, func(b core.Budget) bool {
		return b.UserID == userID && b.CategoryID == categoryID && b.Contains(date)
	}), nil
}

func (v *view) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := v.writable(); err != nil {
		return core.Budget{}, err
	}
	if _, ok := v.st.users[b.UserID]; !ok {
		return core.Budget{}, integrity("create budget", "user %d does not exist", b.UserID)
	}
	if _, ok := v.st.categories[b.CategoryID]; !ok {
		return core.Budget{}, integrity("create budget", "category %d does not exist", b.CategoryID)
	}
	if b.StartDate.After(b.EndDate.Time) {
		return core.Budget{}, integrity("create budget", "start_date after end_date")
	}
	v.st.budgetSeq++
	b.ID = v.st.budgetSeq
	v.st.budgets[b.ID] = b
	return b, nil
}

func (v *view) UpdateBudget(_ context.Context, b core.Budget) error {
	if err := v.writable(); err != nil {
		return err
	}
	old, ok := v.st.budgets[b.ID]
	if !ok {
		return &core.NotFoundError{Entity: "budget", ID: b.ID}
	}
	if b.StartDate.After(b.EndDate.Time) {
		return integrity("update budget", "start_date after end_date")
	}
	old.Amount = b.Amount
	old.StartDate = b.StartDate
	old.EndDate = b.EndDate
	v.st.budgets[b.ID] = old
	return nil
}

func (v *view) SetBudgetSpent(_ context.Context, id int64, spent decimal.Decimal) error {
	if err := v.writable(); err != nil {
		return err
	}
	b, ok := v.st.budgets[id]
	if !ok {
		return &core.NotFoundError{Entity: "budget", ID: id}
	}
	b.Spent = spent
	v.st.budgets[id] = b
	return nil
}

func (v *view) DeleteBudget(_ context.Context, id int64) error {
	if err := v.writable(); err != nil {
		return err
	}
	if _, ok := v.st.budgets[id]; !ok {
		return &core.NotFoundError{Entity: "budget", ID: id}
	}
	delete(v.st.budgets, id)
	for tid, t := range v.st.transactions {
		if t.BudgetID != nil && *t.BudgetID == id {
			t.BudgetID = nil
			v.st.transactions[tid] = t
		}
	}
	return nil
}

// Goals

func (v *view) GetGoal(_ context.Context, id int64) (core.Goal, error) {
	g, ok := v.st.goals[id]
	if !ok {
		return core.Goal{}, &core.NotFoundError{Entity: "goal", ID: id}
	}
	return g, nil
}

func (v *view) ListGoals(_ context.Context, userID int64) ([]core.Goal, error) {
	return sortedByID(v.st.goals, func(g core.Goal) bool { return g.UserID == userID }), nil
}

func (v *view) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := v.writable(); err != nil {
		return core.Goal{}, err
	}
	if _, ok := v.st.users[g.UserID]; !ok {
		return core.Goal{}, integrity("create goal", "user %d does not exist", g.UserID)
	}
	v.st.goalSeq++
	g.ID = v.st.goalSeq
	v.st.goals[g.ID] = g
	return g, nil
}

func (v *view) DeleteGoal(_ context.Context, id int64) error {
	if err := v.writable(); err != nil {
		return err
	}
	if _, ok := v.st.goals[id]; !ok {
		return &core.NotFoundError{Entity: "goal", ID: id}
	}
	delete(v.st.goals, id)
	return nil
}

// Outbox

func (v *view) EnqueueEvent(_ context.Context, e core.LedgerEvent) error {
	if err := v.writable(); err != nil {
		return err
	}
	for _, existing := range v.st.events {
		if existing.Event.EventID == e.EventID {
			return integrity("enqueue ledger event", "event %s already queued", e.EventID)
		}
	}
	v.st.eventSeq++
	v.st.events = append(v.st.events, storage.OutboxEntry{
		ID:        v.st.eventSeq,
		Event:     e,
		Status:    storage.EventPending,
		CreatedAt: e.OccurredAt,
	})
	return nil
}
