package cli

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wealthwatch/internal/core"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only summaries of a user's ledger",
	}

	var userID int64
	var year int

	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Income and spending per month of one year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				s, err := app.Reports.MonthlySeries(cmd.Context(), userID, year)
				if err != nil {
					return err
				}
				printSeries(cmd, s)
				return nil
			})
		},
	}
	monthly.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year")

	months := &cobra.Command{
		Use:   "months",
		Short: "Income and spending of every month with activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				totals, err := app.Reports.MonthlySeriesAllTime(cmd.Context(), userID)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "MONTH", "INCOME", "EXPENSE")
				for _, m := range totals {
					t.row(m.Key, amount(m.Income), amount(m.Expense))
				}
				return t.flush()
			})
		},
	}

	var accountID int64
	history := &cobra.Command{
		Use:   "history",
		Short: "Running balance of an account, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				h, err := app.Reports.AccountBalanceHistory(cmd.Context(), userID, accountID)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "DATE", "TRANSACTION", "BALANCE")
				for _, p := range h.Points {
					t.row(p.Date.String(), itoa(p.TransactionID), amount(p.Balance))
				}
				return t.flush()
			})
		},
	}
	history.Flags().Int64Var(&accountID, "account", 0, "account id (required)")
	_ = history.MarkFlagRequired("account")

	types := &cobra.Command{
		Use:   "types",
		Short: "Total balance per account type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				byType, err := app.Reports.BalanceByAccountType(cmd.Context(), userID)
				if err != nil {
					return err
				}
				printBalanceByType(cmd, byType)
				return nil
			})
		},
	}

	budgets := &cobra.Command{
		Use:   "budgets",
		Short: "Budgets with spent and remaining amounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				summaries, err := app.Reports.BudgetSummaries(cmd.Context(), userID)
				if err != nil {
					return err
				}
				printBudgets(cmd, summaries)
				return nil
			})
		},
	}

	overview := &cobra.Command{
		Use:   "overview",
		Short: "Dashboard of accounts, recent activity, budgets and goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				ov, err := app.Reports.Overview(cmd.Context(), userID, year)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n\nAccounts\n", ov.User.Username, ov.User.Email)
				t := newTable(out, "ID", "NAME", "TYPE", "BALANCE")
				for _, a := range ov.Accounts {
					t.row(itoa(a.ID), a.Name, string(a.Type), amount(a.Balance))
				}
				_ = t.flush()

				fmt.Fprintln(out, "\nRecent transactions")
				t = newTable(out, "ID", "DATE", "TYPE", "AMOUNT", "DESCRIPTION")
				for _, tx := range ov.Recent {
					t.row(itoa(tx.ID), tx.Date.String(), string(tx.Type), amount(tx.Amount), tx.Description)
				}
				_ = t.flush()

				fmt.Fprintln(out, "\nBudgets")
				printBudgets(cmd, ov.Budgets)

				fmt.Fprintln(out, "\nGoals")
				t = newTable(out, "ID", "NAME", "TARGET")
				for _, g := range ov.Goals {
					t.row(itoa(g.ID), g.Name, amount(g.TargetAmount))
				}
				_ = t.flush()

				fmt.Fprintln(out, "\nBalance by account type")
				printBalanceByType(cmd, ov.BalanceByType)

				fmt.Fprintln(out)
				printSeries(cmd, ov.Series)
				return nil
			})
		},
	}
	overview.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year of the monthly series")

	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "user id (required)")
	cmd.AddCommand(monthly, months, history, types, budgets, overview)
	return cmd
}

func printSeries(cmd *cobra.Command, s core.MonthlySeries) {
	fmt.Fprintf(cmd.OutOrStdout(), "Year %d\n", s.Year)
	t := newTable(cmd.OutOrStdout(), "MONTH", "INCOME", "SPENDING")
	for m, label := range s.Labels {
		t.row(label, amount(s.Income[m]), amount(s.Spending[m]))
	}
	_ = t.flush()
}

func printBalanceByType(cmd *cobra.Command, byType map[core.AccountType]decimal.Decimal) {
	keys := slices.Sorted(maps.Keys(byType))
	t := newTable(cmd.OutOrStdout(), "TYPE", "BALANCE")
	for _, k := range keys {
		t.row(string(k), amount(byType[k]))
	}
	_ = t.flush()
}
