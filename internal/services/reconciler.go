package services

import (
	"context"
	"fmt"

	"wealthwatch/internal/core"
	"wealthwatch/internal/ledger"
	"wealthwatch/internal/log"
	"wealthwatch/internal/storage"
)

// Reconciler checks stored account balances against opening balance plus
// the replayed transaction history. It never repairs what it finds.
type Reconciler struct {
	store  storage.Store
	logger *log.Logger
}

func NewReconciler(store storage.Store, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{store: store, logger: logger.WithComponent(log.ComponentReconcile)}
}

// ReconcileAccount compares one account owned by userID with its replay.
func (r *Reconciler) ReconcileAccount(ctx context.Context, userID, accountID int64) (core.Drift, error) {
	var d core.Drift
	err := r.store.View(ctx, func(ctx context.Context, rd storage.Reader) error {
		a, err := ownedAccount(ctx, rd, userID, accountID)
		if err != nil {
			return err
		}
		d, err = drift(ctx, rd, a)
		return err
	})
	if err != nil {
		return core.Drift{}, fmt.Errorf("reconcile account: %w", err)
	}
	r.report(ctx, userID, d)
	return d, nil
}

// ReconcileUser returns the drift of every account of userID that is out of
// balance. A nil result means every account agrees with its history.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID int64) ([]core.Drift, error) {
	var drifts []core.Drift
	err := r.store.View(ctx, func(ctx context.Context, rd storage.Reader) error {
		accounts, err := rd.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			d, err := drift(ctx, rd, a)
			if err != nil {
				return err
			}
			if !d.Balanced() {
				drifts = append(drifts, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile user: %w", err)
	}
	for _, d := range drifts {
		r.report(ctx, userID, d)
	}
	return drifts, nil
}

func drift(ctx context.Context, rd storage.Reader, a core.Account) (core.Drift, error) {
	txs, err := rd.ListTransactions(ctx, storage.TransactionFilter{AccountID: a.ID})
	if err != nil {
		return core.Drift{}, err
	}
	return core.Drift{
		AccountID: a.ID,
		Stored:    a.Balance,
		Replayed:  ledger.Replay(a.OpeningBalance, txs),
	}, nil
}

func (r *Reconciler) report(ctx context.Context, userID int64, d core.Drift) {
	if d.Balanced() {
		r.logger.DebugContext(ctx, "Account balanced", log.FieldUserID, userID, log.FieldAccountID, d.AccountID)
		return
	}
	r.logger.WarnContext(ctx, "Account balance drift detected",
		log.FieldUserID, userID,
		log.FieldAccountID, d.AccountID,
		"stored", core.FormatAmount(d.Stored),
		"replayed", core.FormatAmount(d.Replayed),
		"delta", core.FormatAmount(d.Delta()))
}
