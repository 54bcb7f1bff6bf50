package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wealthwatch/internal/config"
	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
)

// rootOptions are the persistent flags; set ones override the environment.
type rootOptions struct {
	backend  string
	dbPath   string
	logLevel string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "wealthwatch",
		Short: "Personal ledger, budgets and reports",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", "", "data backend: sqlite or memory (default from DATA_BACKEND)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (default from SQLITE_DB_PATH)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (default from LOG_LEVEL)")

	rootCmd.AddCommand(
		newUserCommand(opts),
		newAccountCommand(opts),
		newCategoryCommand(opts),
		newTransactionCommand(opts),
		newBudgetCommand(opts),
		newGoalCommand(opts),
		newReportCommand(opts),
		newReconcileCommand(opts),
		newOutboxCommand(opts),
	)

	return rootCmd
}

// withApp opens the configured backend, runs fn and closes the backend again.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(app *App) error) (err error) {
	LoadEnvFile()
	cfg := config.Load()
	if o.backend != "" {
		cfg.DataBackend = o.backend
	}
	if o.dbPath != "" {
		cfg.SQLiteDBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel).WithComponent(log.ComponentCLI)
	app, err := OpenApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close backend: %w", cerr)
		}
	}()
	return fn(app)
}

// table writes aligned columns to w.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: what, Reason: fmt.Sprintf("invalid id %q", s)}
	}
	return id, nil
}

func parseOptionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return errors.New("--user is required")
	}
	return nil
}

func amount(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
