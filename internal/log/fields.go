package log

import (
	"github.com/shopspring/decimal"

	"wealthwatch/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldDuration      = "duration_ms"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldCategoryID    = "category_id"
	FieldGoalID        = "goal_id"
	FieldType          = "type"
	FieldAmount        = "amount"
	FieldBalance       = "balance"
	FieldSpent         = "spent"
	FieldYear          = "year"
	FieldEventID       = "event_id"
	FieldEventType     = "event_type"
	FieldAttempts      = "attempts"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentReport    = "report"
	ComponentReconcile = "reconcile"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentOutbox    = "outbox"
	ComponentWorker    = "worker"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpReconcile = "reconcile"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error and its category.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = core.ErrorType(err)
	}
	return f
}

func (f LogFields) WithUser(userID int64) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithTransaction adds the ids and signed amount of t.
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	f[FieldUserID] = t.UserID
	f[FieldAccountID] = t.AccountID
	f[FieldTransactionID] = t.ID
	f[FieldType] = string(t.Type)
	f[FieldAmount] = core.FormatAmount(t.Amount)
	if t.BudgetID != nil {
		f[FieldBudgetID] = *t.BudgetID
	}
	return f
}

func (f LogFields) WithAccount(a core.Account) LogFields {
	f[FieldUserID] = a.UserID
	f[FieldAccountID] = a.ID
	f[FieldBalance] = core.FormatAmount(a.Balance)
	return f
}

func (f LogFields) WithBudget(b core.Budget) LogFields {
	f[FieldUserID] = b.UserID
	f[FieldBudgetID] = b.ID
	f[FieldCategoryID] = b.CategoryID
	f[FieldAmount] = core.FormatAmount(b.Amount)
	f[FieldSpent] = core.FormatAmount(b.Spent)
	return f
}

func (f LogFields) WithAmount(d decimal.Decimal) LogFields {
	f[FieldAmount] = core.FormatAmount(d)
	return f
}

func (f LogFields) WithEvent(e core.LedgerEvent) LogFields {
	f[FieldEventID] = e.EventID
	f[FieldEventType] = string(e.Type)
	f[FieldUserID] = e.UserID
	if e.AccountID != 0 {
		f[FieldAccountID] = e.AccountID
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
