package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventAccountCreated     EventType = "account.created"
	EventAccountDeleted     EventType = "account.deleted"
	EventBudgetCreated      EventType = "budget.created"
	EventBudgetUpdated      EventType = "budget.updated"
	EventBudgetDeleted      EventType = "budget.deleted"
	EventUserCreated        EventType = "user.created"
	EventGoalCreated        EventType = "goal.created"
	EventGoalDeleted        EventType = "goal.deleted"
	EventCategoryCreated    EventType = "category.created"
	EventCategoryDeleted    EventType = "category.deleted"
)

// LedgerEvent describes one committed mutation. It is written to the outbox
// in the same unit of work as the mutation itself.
type LedgerEvent struct {
	EventID       string          `json:"event_id"`
	Type          EventType       `json:"type"`
	UserID        int64           `json:"user_id"`
	AccountID     int64           `json:"account_id,omitempty"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	BudgetID      int64           `json:"budget_id,omitempty"`
	CategoryID    int64           `json:"category_id,omitempty"`
	GoalID        int64           `json:"goal_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewLedgerEvent stamps a new event with a random id and the current time.
func NewLedgerEvent(typ EventType, userID int64) LedgerEvent {
	return LedgerEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// TransactionEvent builds an event carrying the transaction's references.
func TransactionEvent(typ EventType, t Transaction) LedgerEvent {
	e := NewLedgerEvent(typ, t.UserID)
	e.AccountID = t.AccountID
	e.TransactionID = t.ID
	e.Amount = t.Signed()
	if t.BudgetID != nil {
		e.BudgetID = *t.BudgetID
	}
	if t.CategoryID != nil {
		e.CategoryID = *t.CategoryID
	}
	return e
}
