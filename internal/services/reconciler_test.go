package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
	"wealthwatch/internal/storage"
)

func TestReconcilerDetectsDrift(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store storage.Store) {
		e := newEnv(t, store, LedgerOptions{})
		e.expense(t, "55.21", day)
		e.income(t, "0.21", day)
		r := NewReconciler(store, log.Discard())

		d, err := r.ReconcileAccount(e.ctx, e.user.ID, e.checking.ID)
		require.NoError(t, err)
		assert.True(t, d.Balanced())
		assert.True(t, d.Replayed.Equal(dec("945.00")))

		// a write path that bypasses the ledger
		err = store.Update(e.ctx, func(ctx context.Context, w storage.Writer) error {
			return w.SetAccountBalance(ctx, e.checking.ID, dec("950.00"))
		})
		require.NoError(t, err)

		d, err = r.ReconcileAccount(e.ctx, e.user.ID, e.checking.ID)
		require.NoError(t, err)
		assert.False(t, d.Balanced())
		assert.True(t, d.Delta().Equal(dec("5.00")))

		drifts, err := r.ReconcileUser(e.ctx, e.user.ID)
		require.NoError(t, err)
		require.Len(t, drifts, 1)
		assert.Equal(t, e.checking.ID, drifts[0].AccountID)

		_, err = r.ReconcileAccount(e.ctx, e.user.ID+1, e.checking.ID)
		assert.ErrorIs(t, err, core.ErrPermission)
	})
}
