package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"wealthwatch/internal/core"
	"wealthwatch/internal/services"
	"wealthwatch/internal/storage"
)

// transactionFlags are the fields shared by tx add and tx update.
type transactionFlags struct {
	accountID   int64
	txType      string
	amount      string
	date        string
	category    string
	description string
}

func (f *transactionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.accountID, "account", 0, "account id")
	cmd.Flags().StringVar(&f.txType, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&f.amount, "amount", "", "positive amount with at most two decimals (required)")
	cmd.Flags().StringVar(&f.date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.category, "category", "", "expense category, by id or name")
	cmd.Flags().StringVar(&f.description, "description", "", "free text")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *transactionFlags) parse() (core.TransactionType, core.Date, error) {
	typ, err := core.ParseTransactionType(f.txType)
	if err != nil {
		return "", core.Date{}, err
	}
	date := core.DateOf(time.Now())
	if f.date != "" {
		if date, err = core.ParseDate(f.date); err != nil {
			return "", core.Date{}, err
		}
	}
	return typ, date, nil
}

// resolveCategory accepts a numeric id or a registry name.
func resolveCategory(ctx context.Context, app *App, s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &id, nil
	}
	c, err := app.Ledger.CategoryByName(ctx, s)
	if err != nil {
		return nil, err
	}
	return &c.ID, nil
}

func newTransactionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction"},
		Short:   "Record and edit transactions",
	}

	var userID int64

	var add transactionFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, date, err := add.parse()
			if err != nil {
				return err
			}
			amt, err := core.ParseAmount(add.amount)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				categoryID, err := resolveCategory(ctx, app, add.category)
				if err != nil {
					return err
				}
				t, err := app.Ledger.CreateTransaction(ctx, services.NewTransaction{
					UserID:      userID,
					AccountID:   add.accountID,
					Type:        typ,
					Amount:      amt,
					Date:        date,
					Description: add.description,
					CategoryID:  categoryID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded transaction %d: %s %s on %s%s\n",
					t.ID, t.Type, amount(t.Amount), t.Date, budgetSuffix(t.BudgetID))
				return nil
			})
		},
	}
	add.register(addCmd)
	_ = addCmd.MarkFlagRequired("account")

	var from, to string
	var accountID int64
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseOptionalDate(from)
			if err != nil {
				return err
			}
			end, err := parseOptionalDate(to)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				txs, err := app.Ledger.ListTransactions(cmd.Context(), userID, storage.TransactionFilter{
					AccountID: accountID,
					From:      start,
					To:        end,
				})
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "ID", "DATE", "ACCOUNT", "TYPE", "AMOUNT", "CATEGORY", "BUDGET", "DESCRIPTION")
				for _, tx := range txs {
					t.row(itoa(tx.ID), tx.Date.String(), itoa(tx.AccountID), string(tx.Type),
						amount(tx.Amount), optionalID(tx.CategoryID), optionalID(tx.BudgetID), tx.Description)
				}
				return t.flush()
			})
		},
	}
	listCmd.Flags().Int64Var(&accountID, "account", 0, "only this account")
	listCmd.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD")
	listCmd.Flags().StringVar(&to, "to", "", "last day YYYY-MM-DD")

	var upd transactionFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "transaction_id")
			if err != nil {
				return err
			}
			typ, date, err := upd.parse()
			if err != nil {
				return err
			}
			amt, err := core.ParseAmount(upd.amount)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				categoryID, err := resolveCategory(ctx, app, upd.category)
				if err != nil {
					return err
				}
				t, err := app.Ledger.UpdateTransaction(ctx, userID, id, services.TransactionChanges{
					AccountID:   upd.accountID,
					Type:        typ,
					Amount:      amt,
					Date:        date,
					Description: upd.description,
					CategoryID:  categoryID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated transaction %d: %s %s on %s%s\n",
					t.ID, t.Type, amount(t.Amount), t.Date, budgetSuffix(t.BudgetID))
				return nil
			})
		},
	}
	upd.register(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and reverse its effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "transaction_id")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Ledger.DeleteTransaction(cmd.Context(), id, userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted transaction %d\n", id)
				return nil
			})
		},
	}

	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "owning user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")
	cmd.AddCommand(addCmd, listCmd, updateCmd, deleteCmd)
	return cmd
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return itoa(*id)
}

func budgetSuffix(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf(" (budget %d)", *id)
}
