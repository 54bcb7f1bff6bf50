// Package worker holds the consumers run by the worker binary.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
)

// AccountReconciler checks one account against its history.
type AccountReconciler interface {
	ReconcileAccount(ctx context.Context, userID, accountID int64) (core.Drift, error)
}

// Stats counts what the worker has seen since it started.
type Stats struct {
	Handled int64
	Skipped int64
	Drifts  int64
}

// ReconcileWorker re-checks the balance of every account touched by a
// ledger event. Drift is logged and counted, never repaired.
type ReconcileWorker struct {
	reconciler AccountReconciler
	logger     *log.Logger

	handled atomic.Int64
	skipped atomic.Int64
	drifts  atomic.Int64
}

func NewReconcileWorker(reconciler AccountReconciler, logger *log.Logger) *ReconcileWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single ledger event from AMQP. Returning an error
// asks the broker to redeliver.
func (w *ReconcileWorker) HandleEvent(ctx context.Context, e core.LedgerEvent) error {
	fields := log.NewFields().WithEvent(e).WithOperation(log.OpConsume)

	if !touchesBalance(e) {
		w.skipped.Add(1)
		w.logger.DebugContext(ctx, "Skipping event without balance effect", fields.ToSlice()...)
		return nil
	}

	d, err := w.reconciler.ReconcileAccount(ctx, e.UserID, e.AccountID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// the account was removed after the event was written
		w.skipped.Add(1)
		w.logger.DebugContext(ctx, "Account no longer exists", fields.ToSlice()...)
		return nil
	case errors.Is(err, core.ErrPermission):
		// a malformed event cannot be fixed by redelivery
		w.skipped.Add(1)
		w.logger.WarnContext(ctx, "Event references an account of another user", fields.ToSlice()...)
		return nil
	case err != nil:
		return fmt.Errorf("reconcile account %d: %w", e.AccountID, err)
	}

	w.handled.Add(1)
	if !d.Balanced() {
		w.drifts.Add(1)
	}
	w.logger.InfoContext(ctx, "Processed ledger event", append(fields.ToSlice(), "balanced", d.Balanced())...)
	return nil
}

func (w *ReconcileWorker) Stats() Stats {
	return Stats{
		Handled: w.handled.Load(),
		Skipped: w.skipped.Load(),
		Drifts:  w.drifts.Load(),
	}
}

func touchesBalance(e core.LedgerEvent) bool {
	if e.AccountID == 0 {
		return false
	}
	switch e.Type {
	case core.EventTransactionCreated, core.EventTransactionUpdated, core.EventTransactionDeleted, core.EventAccountCreated:
		return true
	default:
		return false
	}
}
