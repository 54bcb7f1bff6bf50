package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wealthwatch/internal/core"
)

// ErrDrift is returned by the reconcile command when a stored balance
// disagrees with its transaction history.
var ErrDrift = errors.New("balance drift detected")

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var userID, accountID int64

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored balances with their replayed history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				var drifts []core.Drift
				if accountID > 0 {
					d, err := app.Reconciler.ReconcileAccount(ctx, userID, accountID)
					if err != nil {
						return err
					}
					if !d.Balanced() {
						drifts = append(drifts, d)
					}
				} else {
					var err error
					if drifts, err = app.Reconciler.ReconcileUser(ctx, userID); err != nil {
						return err
					}
				}

				if len(drifts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "All balances agree with their history")
					return nil
				}
				t := newTable(cmd.OutOrStdout(), "ACCOUNT", "STORED", "REPLAYED", "DELTA")
				for _, d := range drifts {
					t.row(itoa(d.AccountID), amount(d.Stored), amount(d.Replayed), amount(d.Delta()))
				}
				_ = t.flush()
				return fmt.Errorf("%w in %d account(s)", ErrDrift, len(drifts))
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id (required)")
	cmd.Flags().Int64Var(&accountID, "account", 0, "only this account")
	return cmd
}

func newOutboxCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the ledger event outbox",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count events by delivery status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				s, err := app.Store.OutboxStats(cmd.Context())
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "PENDING", "PUBLISHED", "FAILED")
				t.row(fmt.Sprint(s.Pending), fmt.Sprint(s.Published), fmt.Sprint(s.Failed))
				return t.flush()
			})
		},
	}

	retry := &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed events for another delivery round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				n, err := app.Store.RetryFailedEvents(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d event(s)\n", n)
				return nil
			})
		},
	}

	var olderThan time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove published events older than the retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				retention := olderThan
				if retention <= 0 {
					retention = app.Config.OutboxRetention
				}
				n, err := app.Store.CleanupPublishedEvents(cmd.Context(), time.Now().Add(-retention))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d published event(s)\n", n)
				return nil
			})
		},
	}
	cleanup.Flags().DurationVar(&olderThan, "older-than", 0, "retention (default from OUTBOX_RETENTION)")

	cmd.AddCommand(stats, retry, cleanup)
	return cmd
}
