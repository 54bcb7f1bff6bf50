package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wealthwatch/internal/core"
	"wealthwatch/internal/services"
)

func newBudgetCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage category budgets",
	}

	var userID int64
	var category, amt, start, end string

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a budget for a category and date window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, startDate, endDate, err := parseBudgetFlags(amt, start, end)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				categoryID, err := resolveCategory(ctx, app, category)
				if err != nil {
					return err
				}
				if categoryID == nil {
					return &core.ValidationError{Field: "category_id", Reason: "is required"}
				}
				b, err := app.Ledger.CreateBudget(ctx, services.NewBudget{
					UserID:     userID,
					CategoryID: *categoryID,
					Amount:     limit,
					StartDate:  startDate,
					EndDate:    endDate,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created budget %d: %s from %s to %s\n",
					b.ID, amount(b.Amount), b.StartDate, b.EndDate)
				return nil
			})
		},
	}
	create.Flags().StringVar(&category, "category", "", "category id or name (required)")
	_ = create.MarkFlagRequired("category")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a budget's amount and window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "budget_id")
			if err != nil {
				return err
			}
			limit, startDate, endDate, err := parseBudgetFlags(amt, start, end)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				b, err := app.Ledger.UpdateBudget(cmd.Context(), userID, id, limit, startDate, endDate)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated budget %d: %s from %s to %s, spent %s\n",
					b.ID, amount(b.Amount), b.StartDate, b.EndDate, amount(b.Spent))
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{create, update} {
		c.Flags().StringVar(&amt, "amount", "", "budget limit (required)")
		c.Flags().StringVar(&start, "start", "", "first day YYYY-MM-DD (required)")
		c.Flags().StringVar(&end, "end", "", "last day YYYY-MM-DD (required)")
		_ = c.MarkFlagRequired("amount")
		_ = c.MarkFlagRequired("start")
		_ = c.MarkFlagRequired("end")
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List budgets with spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "budget_id")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Ledger.DeleteBudget(cmd.Context(), userID, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %d\n", id)
				return nil
			})
		},
	}

	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "owning user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")
	cmd.AddCommand(create, update, list, del)
	return cmd
}

func parseBudgetFlags(amt, start, end string) (limit decimal.Decimal, startDate, endDate core.Date, err error) {
	if limit, err = core.ParseAmount(amt); err != nil {
		return
	}
	if startDate, err = core.ParseDate(start); err != nil {
		return
	}
	endDate, err = core.ParseDate(end)
	return
}

func printBudgets(cmd *cobra.Command, summaries []core.BudgetSummary) {
	t := newTable(cmd.OutOrStdout(), "ID", "CATEGORY", "START", "END", "AMOUNT", "SPENT", "REMAINING")
	for _, s := range summaries {
		b := s.Budget
		t.row(itoa(b.ID), s.Category, b.StartDate.String(), b.EndDate.String(),
			amount(b.Amount), amount(b.Spent), amount(s.Remaining))
	}
	_ = t.flush()
}
