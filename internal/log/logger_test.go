package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wealthwatch/internal/core"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil)}).WithComponent(ComponentLedger)

	l.Info("transaction recorded", FieldUserID, 7)

	out := buf.String()
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, "user_id=7")
	assert.Equal(t, 1, strings.Count(out, "component="))
	assert.Equal(t, ComponentLedger, l.Component())
}

func TestFields(t *testing.T) {
	budget := int64(4)
	f := NewFields().
		WithOperation(OpCreate).
		WithTransaction(core.Transaction{ID: 3, UserID: 1, AccountID: 2, Type: core.Expense, Amount: decimal.RequireFromString("12.5"), BudgetID: &budget}).
		WithError(&core.NotFoundError{Entity: "account", ID: 2})

	assert.Equal(t, OpCreate, f[FieldOperation])
	assert.Equal(t, "12.50", f[FieldAmount])
	assert.Equal(t, int64(4), f[FieldBudgetID])
	assert.Equal(t, "not_found_error", f[FieldErrorType])
	assert.Len(t, f.ToSlice(), len(f)*2)

	assert.NotContains(t, NewFields().WithError(nil), FieldError)
	assert.Equal(t, "internal_error", NewFields().WithError(errors.New("x"))[FieldErrorType])
}
