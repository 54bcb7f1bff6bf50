package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"wealthwatch/internal/core"
)

func newUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var username, email, first, last string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				u, err := app.Ledger.CreateUser(cmd.Context(), username, email, first, last)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", u.ID, u.Username)
				return nil
			})
		},
	}
	create.Flags().StringVar(&username, "username", "", "unique username (required)")
	create.Flags().StringVar(&email, "email", "", "unique email address (required)")
	create.Flags().StringVar(&first, "first-name", "", "first name")
	create.Flags().StringVar(&last, "last-name", "", "last name")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user_id")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				u, err := app.Ledger.GetUser(cmd.Context(), id)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "ID", "USERNAME", "EMAIL", "NAME")
				t.row(itoa(u.ID), u.Username, u.Email, u.FirstName+" "+u.LastName)
				return t.flush()
			})
		},
	}

	cmd.AddCommand(create, show)
	return cmd
}

func newAccountCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	var userID int64

	var name, accountType, opening string
	create := &cobra.Command{
		Use:   "create",
		Short: "Open an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := core.ParseAccountType(accountType)
			if err != nil {
				return err
			}
			balance, err := core.ParseSignedAmount(opening)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				a, err := app.Ledger.CreateAccount(cmd.Context(), userID, name, typ, balance)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %d (%s, %s) balance %s\n", a.ID, a.Name, a.Type, amount(a.Balance))
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "account name (required)")
	create.Flags().StringVar(&accountType, "type", string(core.Checking), "checking, savings, credit, investment or cash")
	create.Flags().StringVar(&opening, "opening", "0", "opening balance")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				accounts, err := app.Ledger.ListAccounts(cmd.Context(), userID)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "ID", "NAME", "TYPE", "OPENING", "BALANCE")
				for _, a := range accounts {
					t.row(itoa(a.ID), a.Name, string(a.Type), amount(a.OpeningBalance), amount(a.Balance))
				}
				return t.flush()
			})
		},
	}

	var cascade bool
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "account_id")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Ledger.DeleteAccount(cmd.Context(), userID, id, cascade); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %d\n", id)
				return nil
			})
		},
	}
	del.Flags().BoolVar(&cascade, "cascade", false, "also delete the account's transactions")

	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "owning user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")
	cmd.AddCommand(create, list, del)
	return cmd
}

func newCategoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage the category registry",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				categories, err := app.Ledger.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "ID", "NAME")
				for _, c := range categories {
					t.row(itoa(c.ID), c.Name)
				}
				return t.flush()
			})
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				c, err := app.Ledger.CreateCategory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created category %d (%s)\n", c.ID, c.Name)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unused category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category_id")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Ledger.DeleteCategory(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func newGoalCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage savings goals",
	}

	var userID int64

	var name, target string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := core.ParseAmount(target)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				g, err := app.Ledger.CreateGoal(cmd.Context(), userID, name, amt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created goal %d (%s) target %s\n", g.ID, g.Name, amount(g.TargetAmount))
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "goal name (required)")
	create.Flags().StringVar(&target, "target", "", "target amount (required)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("target")

	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				goals, err := app.Ledger.ListGoals(cmd.Context(), userID)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "ID", "NAME", "TARGET")
				for _, g := range goals {
					t.row(itoa(g.ID), g.Name, amount(g.TargetAmount))
				}
				return t.flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "goal_id")
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Ledger.DeleteGoal(cmd.Context(), userID, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %d\n", id)
				return nil
			})
		},
	}

	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "owning user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")
	cmd.AddCommand(create, list, del)
	return cmd
}
