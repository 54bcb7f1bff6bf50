package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
	"wealthwatch/internal/services"
	"wealthwatch/internal/storage"
	"wealthwatch/internal/storage/memory"
)

type stubReconciler struct {
	drift core.Drift
	err   error
	calls int
}

func (s *stubReconciler) ReconcileAccount(context.Context, int64, int64) (core.Drift, error) {
	s.calls++
	return s.drift, s.err
}

func TestHandleEventSkipsEventsWithoutBalanceEffect(t *testing.T) {
	stub := &stubReconciler{}
	w := NewReconcileWorker(stub, log.Discard())
	ctx := context.Background()

	for _, e := range []core.LedgerEvent{
		core.NewLedgerEvent(core.EventBudgetCreated, 1),
		core.NewLedgerEvent(core.EventUserCreated, 1),
		{Type: core.EventAccountDeleted, UserID: 1, AccountID: 3},
		{Type: core.EventTransactionCreated, UserID: 1},
	} {
		require.NoError(t, w.HandleEvent(ctx, e))
	}
	assert.Zero(t, stub.calls)
	assert.Equal(t, Stats{Skipped: 4}, w.Stats())
}

func TestHandleEventErrors(t *testing.T) {
	e := core.LedgerEvent{Type: core.EventTransactionCreated, UserID: 1, AccountID: 2}
	ctx := context.Background()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"account gone", &core.NotFoundError{Entity: "account", ID: 2}, false},
		{"foreign account", &core.PermissionError{Entity: "account", ID: 2, UserID: 1}, false},
		{"store busy", &core.ConcurrencyError{Op: "begin read", Err: errors.New("busy")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewReconcileWorker(&stubReconciler{err: tt.err}, log.Discard())
			err := w.HandleEvent(ctx, e)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConcurrency)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandleEventCountsDrift(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	ledger := services.NewLedgerService(store, log.Discard(), services.LedgerOptions{})
	u, err := ledger.CreateUser(ctx, "ada", "ada@example.com", "", "")
	require.NoError(t, err)
	a, err := ledger.CreateAccount(ctx, u.ID, "Checking", core.Checking, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	w := NewReconcileWorker(services.NewReconciler(store, log.Discard()), log.Discard())
	e := core.LedgerEvent{Type: core.EventAccountCreated, UserID: u.ID, AccountID: a.ID}
	require.NoError(t, w.HandleEvent(ctx, e))
	assert.Equal(t, Stats{Handled: 1}, w.Stats())

	err = store.Update(ctx, func(ctx context.Context, wr storage.Writer) error {
		return wr.SetAccountBalance(ctx, a.ID, decimal.RequireFromString("11.00"))
	})
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(ctx, e))
	assert.Equal(t, Stats{Handled: 2, Drifts: 1}, w.Stats())
}
