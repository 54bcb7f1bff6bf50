package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
	"wealthwatch/internal/ledger"
	"wealthwatch/internal/log"
	"wealthwatch/internal/storage"
)

// LedgerOptions holds the policy switches of a LedgerService.
type LedgerOptions struct {
	// AllowBudgetOverlap lets one user hold several budgets for the same
	// category whose windows share days. Expenses then go to the lowest id.
	AllowBudgetOverlap bool
}

// NewTransaction is the input of CreateTransaction.
type NewTransaction struct {
	UserID      int64
	AccountID   int64
	Type        core.TransactionType
	Amount      decimal.Decimal
	Date        core.Date
	Description string
	CategoryID  *int64
}

// TransactionChanges replaces the editable fields of a transaction. A zero
// AccountID keeps the current account.
type TransactionChanges struct {
	AccountID   int64
	Type        core.TransactionType
	Amount      decimal.Decimal
	Date        core.Date
	Description string
	CategoryID  *int64
}

// NewBudget is the input of CreateBudget.
type NewBudget struct {
	UserID     int64
	CategoryID int64
	Amount     decimal.Decimal
	StartDate  core.Date
	EndDate    core.Date
}

// LedgerService applies every mutation of accounts, transactions, budgets,
// goals and categories as one unit of work, together with its outbox event.
type LedgerService struct {
	store  storage.Store
	logger *log.Logger
	opts   LedgerOptions

	mu       sync.RWMutex
	onCommit []func(userID int64)
}

func NewLedgerService(store storage.Store, logger *log.Logger, opts LedgerOptions) *LedgerService {
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerService{
		store:  store,
		logger: logger.WithComponent(log.ComponentLedger),
		opts:   opts,
	}
}

// OnCommit registers fn to run after every committed mutation of a user's
// data. Category changes are global and notify nobody.
func (s *LedgerService) OnCommit(fn func(userID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = append(s.onCommit, fn)
}

// update runs fn in one unit of work and notifies OnCommit subscribers
// once it has committed.
func (s *LedgerService) update(ctx context.Context, userID int64, fn func(ctx context.Context, w storage.Writer) error) error {
	if err := s.store.Update(ctx, fn); err != nil {
		return err
	}
	if userID == 0 {
		return nil
	}
	s.mu.RLock()
	hooks := slices.Clone(s.onCommit)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(userID)
	}
	return nil
}

// logFailure logs expected client errors at Warn and the rest at Error.
func (s *LedgerService) logFailure(ctx context.Context, msg string, fields log.LogFields, err error) {
	fields = fields.WithError(err)
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrPermission), errors.Is(err, core.ErrNotFound):
		s.logger.WarnContext(ctx, msg, fields.ToSlice()...)
	default:
		s.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
	}
}

// Users

func (s *LedgerService) CreateUser(ctx context.Context, username, email, firstName, lastName string) (core.User, error) {
	u := core.User{
		Username:  strings.TrimSpace(username),
		Email:     strings.TrimSpace(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}

	var created core.User
	err := s.store.Update(ctx, func(ctx context.Context, w storage.Writer) error {
		var err error
		if created, err = w.CreateUser(ctx, u); err != nil {
			return err
		}
		return w.EnqueueEvent(ctx, core.NewLedgerEvent(core.EventUserCreated, created.ID))
	})
	if err != nil {
		s.logFailure(ctx, "Failed to create user", log.NewFields().WithOperation(log.OpCreate), err)
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User created", log.FieldUserID, created.ID, "username", created.Username)
	return created, nil
}

func (s *LedgerService) GetUser(ctx context.Context, userID int64) (core.User, error) {
	var u core.User
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		u, err = r.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Accounts

func (s *LedgerService) CreateAccount(ctx context.Context, userID int64, name string, accountType core.AccountType, openingBalance decimal.Decimal) (core.Account, error) {
	a := core.Account{
		UserID:         userID,
		Name:           strings.TrimSpace(name),
		Type:           accountType,
		OpeningBalance: openingBalance,
		Balance:        openingBalance,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	var created core.Account
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		if _, err := w.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		if created, err = w.CreateAccount(ctx, a); err != nil {
			return err
		}
		e := core.NewLedgerEvent(core.EventAccountCreated, userID)
		e.AccountID = created.ID
		e.Amount = created.OpeningBalance
		return w.EnqueueEvent(ctx, e)
	})
	if err != nil {
		s.logFailure(ctx, "Failed to create account", log.NewFields().WithOperation(log.OpCreate).WithUser(userID), err)
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "Account created", log.NewFields().WithAccount(created).ToSlice()...)
	return created, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, userID, accountID int64) (core.Account, error) {
	var a core.Account
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		a, err = ownedAccount(ctx, r, userID, accountID)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	var accounts []core.Account
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		accounts, err = r.ListAccounts(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes an account. An account with transactions is only
// removed when cascade is set; every transaction then goes with it and
// releases its budget attribution.
func (s *LedgerService) DeleteAccount(ctx context.Context, userID, accountID int64, cascade bool) error {
	removed := 0
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		a, err := ownedAccount(ctx, w, userID, accountID)
		if err != nil {
			return err
		}
		txs, err := w.ListTransactions(ctx, storage.TransactionFilter{AccountID: a.ID})
		if err != nil {
			return err
		}
		if len(txs) > 0 && !cascade {
			return &core.ValidationError{
				Field:  "account_id",
				Reason: fmt.Sprintf("account has %d transactions; delete them first or cascade", len(txs)),
			}
		}

		for _, t := range txs {
			if err := release(ctx, w, t); err != nil {
				return err
			}
			if err := w.DeleteTransaction(ctx, t.ID); err != nil {
				return err
			}
			if err := w.EnqueueEvent(ctx, core.TransactionEvent(core.EventTransactionDeleted, t)); err != nil {
				return err
			}
		}
		removed = len(txs)

		if err := w.DeleteAccount(ctx, a.ID); err != nil {
			return err
		}
		e := core.NewLedgerEvent(core.EventAccountDeleted, userID)
		e.AccountID = a.ID
		e.Amount = a.Balance
		return w.EnqueueEvent(ctx, e)
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpDelete).WithUser(userID)
		fields[log.FieldAccountID] = accountID
		s.logFailure(ctx, "Failed to delete account", fields, err)
		return fmt.Errorf("delete account: %w", err)
	}

	s.logger.InfoContext(ctx, "Account deleted",
		log.FieldUserID, userID, log.FieldAccountID, accountID, "transactions_removed", removed)
	return nil
}

// Transactions

// CreateTransaction records t, moves the account balance and, for an
// expense, attributes it to the first budget covering its category and date.
func (s *LedgerService) CreateTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		UserID:      in.UserID,
		AccountID:   in.AccountID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date.Normalized(),
		CategoryID:  in.CategoryID,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.update(ctx, in.UserID, func(ctx context.Context, w storage.Writer) error {
		a, err := ownedAccount(ctx, w, t.UserID, t.AccountID)
		if err != nil {
			return err
		}
		if err := checkCategory(ctx, w, t.CategoryID); err != nil {
			return err
		}

		if err := attribute(ctx, w, &t); err != nil {
			return err
		}
		if err := w.SetAccountBalance(ctx, a.ID, ledger.Apply(a.Balance, t.Type, t.Amount)); err != nil {
			return err
		}
		if created, err = w.CreateTransaction(ctx, t); err != nil {
			return err
		}
		return w.EnqueueEvent(ctx, core.TransactionEvent(core.EventTransactionCreated, created))
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpCreate).WithTransaction(t)
		s.logFailure(ctx, "Failed to create transaction", fields, err)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction created", log.NewFields().WithTransaction(created).ToSlice()...)
	return created, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, transactionID int64) (core.Transaction, error) {
	var t core.Transaction
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		t, err = ownedTransaction(ctx, r, userID, transactionID)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the user's transactions newest first. The filter's
// UserID is always replaced by userID.
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, error) {
	f.UserID = userID
	var txs []core.Transaction
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		if f.AccountID != 0 {
			if _, err := ownedAccount(ctx, r, userID, f.AccountID); err != nil {
				return err
			}
		}
		var err error
		txs, err = r.ListTransactions(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	slices.Reverse(txs)
	return txs, nil
}

// UpdateTransaction reverses the old balance and budget effects of a
// transaction and applies the edited version in the same unit. The budget is
// matched again for the new category and date.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, transactionID int64, changes TransactionChanges) (core.Transaction, error) {
	var updated core.Transaction
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		old, err := ownedTransaction(ctx, w, userID, transactionID)
		if err != nil {
			return err
		}

		t := core.Transaction{
			ID:          old.ID,
			UserID:      old.UserID,
			AccountID:   changes.AccountID,
			Type:        changes.Type,
			Amount:      changes.Amount,
			Description: strings.TrimSpace(changes.Description),
			Date:        changes.Date.Normalized(),
			CategoryID:  changes.CategoryID,
		}
		if t.AccountID == 0 {
			t.AccountID = old.AccountID
		}
		if err := t.Validate(); err != nil {
			return err
		}
		if _, err := ownedAccount(ctx, w, userID, t.AccountID); err != nil {
			return err
		}
		if err := checkCategory(ctx, w, t.CategoryID); err != nil {
			return err
		}

		// undo the old effects first so a same-account edit sees the
		// restored balance
		oldAccount, err := w.GetAccount(ctx, old.AccountID)
		if err != nil {
			return err
		}
		if err := w.SetAccountBalance(ctx, oldAccount.ID, ledger.Reverse(oldAccount.Balance, old.Type, old.Amount)); err != nil {
			return err
		}
		if err := release(ctx, w, old); err != nil {
			return err
		}

		if err := attribute(ctx, w, &t); err != nil {
			return err
		}
		newAccount, err := w.GetAccount(ctx, t.AccountID)
		if err != nil {
			return err
		}
		if err := w.SetAccountBalance(ctx, newAccount.ID, ledger.Apply(newAccount.Balance, t.Type, t.Amount)); err != nil {
			return err
		}
		if err := w.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		updated = t
		return w.EnqueueEvent(ctx, core.TransactionEvent(core.EventTransactionUpdated, t))
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpUpdate).WithUser(userID)
		fields[log.FieldTransactionID] = transactionID
		s.logFailure(ctx, "Failed to update transaction", fields, err)
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction updated", log.NewFields().WithTransaction(updated).ToSlice()...)
	return updated, nil
}

// DeleteTransaction removes a transaction owned by requestingUserID and
// reverses its balance and budget effects.
func (s *LedgerService) DeleteTransaction(ctx context.Context, transactionID, requestingUserID int64) error {
	var deleted core.Transaction
	err := s.update(ctx, requestingUserID, func(ctx context.Context, w storage.Writer) error {
		t, err := ownedTransaction(ctx, w, requestingUserID, transactionID)
		if err != nil {
			return err
		}
		a, err := w.GetAccount(ctx, t.AccountID)
		if err != nil {
			return err
		}
		if err := w.SetAccountBalance(ctx, a.ID, ledger.Reverse(a.Balance, t.Type, t.Amount)); err != nil {
			return err
		}
		if err := release(ctx, w, t); err != nil {
			return err
		}
		if err := w.DeleteTransaction(ctx, t.ID); err != nil {
			return err
		}
		deleted = t
		return w.EnqueueEvent(ctx, core.TransactionEvent(core.EventTransactionDeleted, t))
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpDelete).WithUser(requestingUserID)
		fields[log.FieldTransactionID] = transactionID
		s.logFailure(ctx, "Failed to delete transaction", fields, err)
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted", log.NewFields().WithTransaction(deleted).ToSlice()...)
	return nil
}

// Budgets

func (s *LedgerService) CreateBudget(ctx context.Context, in NewBudget) (core.Budget, error) {
	b := core.Budget{
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Spent:      decimal.Zero,
		StartDate:  in.StartDate.Normalized(),
		EndDate:    in.EndDate.Normalized(),
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var created core.Budget
	err := s.update(ctx, in.UserID, func(ctx context.Context, w storage.Writer) error {
		if _, err := w.GetUser(ctx, b.UserID); err != nil {
			return err
		}
		if _, err := w.GetCategory(ctx, b.CategoryID); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, w, b); err != nil {
			return err
		}
		var err error
		if created, err = w.CreateBudget(ctx, b); err != nil {
			return err
		}
		return w.EnqueueEvent(ctx, budgetEvent(core.EventBudgetCreated, created))
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpCreate).WithUser(in.UserID)
		fields[log.FieldCategoryID] = in.CategoryID
		s.logFailure(ctx, "Failed to create budget", fields, err)
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget created", log.NewFields().WithBudget(created).ToSlice()...)
	return created, nil
}

// UpdateBudget changes the cap and window of a budget. Spent and the
// transactions already attributed to it are kept.
func (s *LedgerService) UpdateBudget(ctx context.Context, userID, budgetID int64, amount decimal.Decimal, start, end core.Date) (core.Budget, error) {
	var updated core.Budget
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		b, err := ownedBudget(ctx, w, userID, budgetID)
		if err != nil {
			return err
		}
		b.Amount = amount
		b.StartDate = start.Normalized()
		b.EndDate = end.Normalized()
		if err := b.Validate(); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, w, b); err != nil {
			return err
		}
		if err := w.UpdateBudget(ctx, b); err != nil {
			return err
		}
		updated = b
		return w.EnqueueEvent(ctx, budgetEvent(core.EventBudgetUpdated, b))
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpUpdate).WithUser(userID)
		fields[log.FieldBudgetID] = budgetID
		s.logFailure(ctx, "Failed to update budget", fields, err)
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget updated", log.NewFields().WithBudget(updated).ToSlice()...)
	return updated, nil
}

// DeleteBudget removes a budget. Transactions attributed to it are kept and
// lose their attribution.
func (s *LedgerService) DeleteBudget(ctx context.Context, userID, budgetID int64) error {
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		b, err := ownedBudget(ctx, w, userID, budgetID)
		if err != nil {
			return err
		}
		if err := w.DeleteBudget(ctx, b.ID); err != nil {
			return err
		}
		return w.EnqueueEvent(ctx, budgetEvent(core.EventBudgetDeleted, b))
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpDelete).WithUser(userID)
		fields[log.FieldBudgetID] = budgetID
		s.logFailure(ctx, "Failed to delete budget", fields, err)
		return fmt.Errorf("delete budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget deleted", log.FieldUserID, userID, log.FieldBudgetID, budgetID)
	return nil
}

func (s *LedgerService) GetBudget(ctx context.Context, userID, budgetID int64) (core.Budget, error) {
	var b core.Budget
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		b, err = ownedBudget(ctx, r, userID, budgetID)
		return err
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (s *LedgerService) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	var budgets []core.Budget
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		budgets, err = r.ListBudgets(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *LedgerService) checkOverlap(ctx context.Context, r storage.Reader, b core.Budget) error {
	if s.opts.AllowBudgetOverlap {
		return nil
	}
	existing, err := r.ListBudgets(ctx, b.UserID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != b.ID && other.CategoryID == b.CategoryID && other.Overlaps(b) {
			return core.ErrOverlappingBudget
		}
	}
	return nil
}

func budgetEvent(typ core.EventType, b core.Budget) core.LedgerEvent {
	e := core.NewLedgerEvent(typ, b.UserID)
	e.BudgetID = b.ID
	e.CategoryID = b.CategoryID
	e.Amount = b.Amount
	return e
}

// Goals

func (s *LedgerService) CreateGoal(ctx context.Context, userID int64, name string, targetAmount decimal.Decimal) (core.Goal, error) {
	g := core.Goal{UserID: userID, Name: strings.TrimSpace(name), TargetAmount: targetAmount}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	var created core.Goal
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		if _, err := w.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		if created, err = w.CreateGoal(ctx, g); err != nil {
			return err
		}
		e := core.NewLedgerEvent(core.EventGoalCreated, userID)
		e.GoalID = created.ID
		e.Amount = created.TargetAmount
		return w.EnqueueEvent(ctx, e)
	})
	if err != nil {
		s.logFailure(ctx, "Failed to create goal", log.NewFields().WithOperation(log.OpCreate).WithUser(userID), err)
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}

	s.logger.InfoContext(ctx, "Goal created",
		log.FieldUserID, userID, log.FieldGoalID, created.ID, log.FieldAmount, core.FormatAmount(created.TargetAmount))
	return created, nil
}

func (s *LedgerService) ListGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	var goals []core.Goal
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		goals, err = r.ListGoals(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

func (s *LedgerService) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	err := s.update(ctx, userID, func(ctx context.Context, w storage.Writer) error {
		g, err := w.GetGoal(ctx, goalID)
		if err != nil {
			return err
		}
		if g.UserID != userID {
			return &core.PermissionError{Entity: "goal", ID: goalID, UserID: userID}
		}
		if err := w.DeleteGoal(ctx, goalID); err != nil {
			return err
		}
		e := core.NewLedgerEvent(core.EventGoalDeleted, userID)
		e.GoalID = goalID
		return w.EnqueueEvent(ctx, e)
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpDelete).WithUser(userID)
		fields[log.FieldGoalID] = goalID
		s.logFailure(ctx, "Failed to delete goal", fields, err)
		return fmt.Errorf("delete goal: %w", err)
	}

	s.logger.InfoContext(ctx, "Goal deleted", log.FieldUserID, userID, log.FieldGoalID, goalID)
	return nil
}

// Categories

func (s *LedgerService) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	var created core.Category
	err := s.update(ctx, 0, func(ctx context.Context, w storage.Writer) error {
		var err error
		if created, err = w.CreateCategory(ctx, c); err != nil {
			return err
		}
		e := core.NewLedgerEvent(core.EventCategoryCreated, 0)
		e.CategoryID = created.ID
		return w.EnqueueEvent(ctx, e)
	})
	if err != nil {
		s.logFailure(ctx, "Failed to create category", log.NewFields().WithOperation(log.OpCreate), err)
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category created", log.FieldCategoryID, created.ID, "name", created.Name)
	return created, nil
}

// ListCategories returns the registry ordered by name.
func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	var categories []core.Category
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		categories, err = r.ListCategories(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *LedgerService) CategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := s.store.View(ctx, func(ctx context.Context, r storage.Reader) error {
		var err error
		c, err = r.GetCategoryByName(ctx, strings.TrimSpace(name))
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category nothing refers to.
func (s *LedgerService) DeleteCategory(ctx context.Context, categoryID int64) error {
	err := s.update(ctx, 0, func(ctx context.Context, w storage.Writer) error {
		if _, err := w.GetCategory(ctx, categoryID); err != nil {
			return err
		}
		inUse, err := w.CategoryInUse(ctx, categoryID)
		if err != nil {
			return err
		}
		if inUse {
			return &core.ValidationError{Field: "category_id", Reason: "still used by transactions or budgets"}
		}
		if err := w.DeleteCategory(ctx, categoryID); err != nil {
			return err
		}
		e := core.NewLedgerEvent(core.EventCategoryDeleted, 0)
		e.CategoryID = categoryID
		return w.EnqueueEvent(ctx, e)
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpDelete)
		fields[log.FieldCategoryID] = categoryID
		s.logFailure(ctx, "Failed to delete category", fields, err)
		return fmt.Errorf("delete category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category deleted", log.FieldCategoryID, categoryID)
	return nil
}

// ownership and reference checks shared by reads and writes

func ownedAccount(ctx context.Context, r storage.Reader, userID, accountID int64) (core.Account, error) {
	a, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, err
	}
	if a.UserID != userID {
		return core.Account{}, &core.PermissionError{Entity: "account", ID: accountID, UserID: userID}
	}
	return a, nil
}

func ownedTransaction(ctx context.Context, r storage.Reader, userID, transactionID int64) (core.Transaction, error) {
	t, err := r.GetTransaction(ctx, transactionID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.UserID != userID {
		return core.Transaction{}, &core.PermissionError{Entity: "transaction", ID: transactionID, UserID: userID}
	}
	return t, nil
}

func ownedBudget(ctx context.Context, r storage.Reader, userID, budgetID int64) (core.Budget, error) {
	b, err := r.GetBudget(ctx, budgetID)
	if err != nil {
		return core.Budget{}, err
	}
	if b.UserID != userID {
		return core.Budget{}, &core.PermissionError{Entity: "budget", ID: budgetID, UserID: userID}
	}
	return b, nil
}

func checkCategory(ctx context.Context, r storage.Reader, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	_, err := r.GetCategory(ctx, *categoryID)
	return err
}

// attribute matches an expense to a budget, adds it to the budget's spent
// total and records the match on t. Unmatched expenses are left alone.
func attribute(ctx context.Context, w storage.Writer, t *core.Transaction) error {
	t.BudgetID = nil
	if t.Type != core.Expense || t.CategoryID == nil {
		return nil
	}
	candidates, err := w.FindBudgets(ctx, t.UserID, *t.CategoryID, t.Date)
	if err != nil {
		return err
	}
	b, ok := ledger.MatchBudget(*t, candidates)
	if !ok {
		return nil
	}
	b = ledger.Attribute(b, t.Amount)
	if err := w.SetBudgetSpent(ctx, b.ID, b.Spent); err != nil {
		return err
	}
	id := b.ID
	t.BudgetID = &id
	return nil
}

// release takes t's amount back out of the budget it was attributed to.
func release(ctx context.Context, w storage.Writer, t core.Transaction) error {
	if t.BudgetID == nil || t.Type != core.Expense {
		return nil
	}
	b, err := w.GetBudget(ctx, *t.BudgetID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	b = ledger.Release(b, t.Amount)
	return w.SetBudgetSpent(ctx, b.ID, b.Spent)
}
