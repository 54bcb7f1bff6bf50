package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queries implements storage.Writer over a transaction. View hands out the
// same type bound to a read transaction; its mutators are never reached.
type queries struct {
	db dbtx
}

var _ storage.Writer = (*queries)(nil)

const (
	userColumns        = "id, username, email, first_name, last_name"
	accountColumns     = "id, user_id, name, account_type, opening_balance, balance"
	categoryColumns    = "id, name"
	transactionColumns = "id, user_id, account_id, type, amount, description, date, category_id, budget_id"
	budgetColumns      = "id, user_id, category_id, amount, spent, start_date, end_date"
	goalColumns        = "id, user_id, name, target_amount"
)

func money(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func parseStoredDate(s string) (core.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return mapError("get "+entity, err)
}

func lastID(res sql.Result, op string) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}

// requireRow turns a zero-row UPDATE/DELETE into a NotFoundError.
func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// Users

func scanUser(s scanner) (core.User, error) {
	var u core.User
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName)
	return u, err
}

func (q *queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (q *queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO users (username, email, first_name, last_name) VALUES (?, ?, ?, ?)",
		u.Username, u.Email, u.FirstName, u.LastName)
	if err != nil {
		return core.User{}, mapError("create user", err)
	}
	if u.ID, err = lastID(res, "create user"); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Accounts

func scanAccount(s scanner) (core.Account, error) {
	var (
		a   core.Account
		typ string
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.OpeningBalance, &a.Balance); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

func (q *queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
	if err != nil {
		return core.Account{}, notFound(err, "account", id)
	}
	return a, nil
}

func (q *queries) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, mapError("list accounts", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, mapError("list accounts", rows.Err())
}

func (q *queries) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO accounts (user_id, name, account_type, opening_balance, balance) VALUES (?, ?, ?, ?, ?)",
		a.UserID, a.Name, string(a.Type), money(a.OpeningBalance), money(a.Balance))
	if err != nil {
		return core.Account{}, mapError("create account", err)
	}
	if a.ID, err = lastID(res, "create account"); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (q *queries) SetAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx, "UPDATE accounts SET balance = ? WHERE id = ?", money(balance), id)
	if err != nil {
		return mapError("update account balance", err)
	}
	return requireRow(res, "account", id)
}

func (q *queries) DeleteAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return mapError("delete account", err)
	}
	return requireRow(res, "account", id)
}

// Categories

func scanCategory(s scanner) (core.Category, error) {
	var c core.Category
	err := s.Scan(&c.ID, &c.Name)
	return c, err
}

func (q *queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
	if err != nil {
		return core.Category{}, notFound(err, "category", id)
	}
	return c, nil
}

func (q *queries) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.NotFoundError{Entity: "category " + name}
	}
	if err != nil {
		return core.Category{}, mapError("get category", err)
	}
	return c, nil
}

func (q *queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY name")
	if err != nil {
		return nil, mapError("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, mapError("list categories", rows.Err())
}

func (q *queries) CategoryInUse(ctx context.Context, id int64) (bool, error) {
	var inUse bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE category_id = ?)
		    OR EXISTS (SELECT 1 FROM budgets WHERE category_id = ?)`, id, id).Scan(&inUse)
	if err != nil {
		return false, mapError("check category usage", err)
	}
	return inUse, nil
}

func (q *queries) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", c.Name)
	if err != nil {
		return core.Category{}, mapError("create category", err)
	}
	if c.ID, err = lastID(res, "create category"); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (q *queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return mapError("delete category", err)
	}
	return requireRow(res, "category", id)
}

// Transactions

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		typ, date            string
		categoryID, budgetID sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.AccountID, &typ, &t.Amount, &t.Description, &date, &categoryID, &budgetID); err != nil {
		return core.Transaction{}, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Date = d
	t.CategoryID = idPtr(categoryID)
	t.BudgetID = idPtr(budgetID)
	return t, nil
}

func transactionWhere(f storage.TransactionFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.UserID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.AccountID != 0 {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.BudgetID != 0 {
		clauses = append(clauses, "budget_id = ?")
		args = append(args, f.BudgetID)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.String())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (q *queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return t, nil
}

func (q *queries) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(f)
	rows, err := q.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY date, id", args...)
	if err != nil {
		return nil, mapError("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, mapError("list transactions", rows.Err())
}

func (q *queries) CountTransactions(ctx context.Context, f storage.TransactionFilter) (int, error) {
	where, args := transactionWhere(f)
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&n); err != nil {
		return 0, mapError("count transactions", err)
	}
	return n, nil
}

func (q *queries) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, account_id, type, amount, description, date, category_id, budget_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, string(t.Type), money(t.Amount), t.Description, t.Date.String(),
		nullID(t.CategoryID), nullID(t.BudgetID))
	if err != nil {
		return core.Transaction{}, mapError("create transaction", err)
	}
	if t.ID, err = lastID(res, "create transaction"); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (q *queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, type = ?, amount = ?, description = ?, date = ?, category_id = ?, budget_id = ?
		WHERE id = ?`,
		t.AccountID, string(t.Type), money(t.Amount), t.Description, t.Date.String(),
		nullID(t.CategoryID), nullID(t.BudgetID), t.ID)
	if err != nil {
		return mapError("update transaction", err)
	}
	return requireRow(res, "transaction", t.ID)
}

func (q *queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return mapError("delete transaction", err)
	}
	return requireRow(res, "transaction", id)
}

// Budgets

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b          core.Budget
		start, end string
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount, &b.Spent, &start, &end); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = parseStoredDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = parseStoredDate(end); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (q *queries) listBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list budgets", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, mapError("list budgets", rows.Err())
}

func (q *queries) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id))
	if err != nil {
		return core.Budget{}, notFound(err, "budget", id)
	}
	return b, nil
}

func (q *queries) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	return q.listBudgets(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? ORDER BY id", userID)
}

func (q *queries) FindBudgets(ctx context.Context, userID, categoryID int64, date core.Date) ([]core.Budget, error) {
	return q.listBudgets(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND category_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY id`, userID, categoryID, date.String(), date.String())
}

func (q *queries) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category_id, amount, spent, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, money(b.Amount), money(b.Spent), b.StartDate.String(), b.EndDate.String())
	if err != nil {
		return core.Budget{}, mapError("create budget", err)
	}
	if b.ID, err = lastID(res, "create budget"); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (q *queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE budgets SET amount = ?, start_date = ?, end_date = ? WHERE id = ?",
		money(b.Amount), b.StartDate.String(), b.EndDate.String(), b.ID)
	if err != nil {
		return mapError("update budget", err)
	}
	return requireRow(res, "budget", b.ID)
}

func (q *queries) SetBudgetSpent(ctx context.Context, id int64, spent decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx, "UPDATE budgets SET spent = ? WHERE id = ?", money(spent), id)
	if err != nil {
		return mapError("update budget spent", err)
	}
	return requireRow(res, "budget", id)
}

func (q *queries) DeleteBudget(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, "UPDATE transactions SET budget_id = NULL WHERE budget_id = ?", id); err != nil {
		return mapError("detach budget", err)
	}
	res, err := q.db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id)
	if err != nil {
		return mapError("delete budget", err)
	}
	return requireRow(res, "budget", id)
}

// Goals

func scanGoal(s scanner) (core.Goal, error) {
	var g core.Goal
	err := s.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount)
	return g, err
}

func (q *queries) GetGoal(ctx context.Context, id int64) (core.Goal, error) {
	g, err := scanGoal(q.db.QueryRowContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = ?", id))
	if err != nil {
		return core.Goal{}, notFound(err, "goal", id)
	}
	return g, nil
}

func (q *queries) ListGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, mapError("list goals", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, mapError("list goals", rows.Err())
}

func (q *queries) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO goals (user_id, name, target_amount) VALUES (?, ?, ?)",
		g.UserID, g.Name, money(g.TargetAmount))
	if err != nil {
		return core.Goal{}, mapError("create goal", err)
	}
	if g.ID, err = lastID(res, "create goal"); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

func (q *queries) DeleteGoal(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id)
	if err != nil {
		return mapError("delete goal", err)
	}
	return requireRow(res, "goal", id)
}

// Outbox

func (q *queries) EnqueueEvent(ctx context.Context, e core.LedgerEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO ledger_events (event_id, event_type, user_id, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, string(e.Type), e.UserID, string(payload), storage.EventPending, e.OccurredAt.UTC().Format(timeLayout))
	if err != nil {
		return mapError("enqueue ledger event", err)
	}
	return nil
}
