package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"expensebot/internal/cli"
	"expensebot/internal/config"
	applog "expensebot/internal/log"
	"expensebot/internal/storage"
)

// ctl carries the state shared by every subcommand. app is opened lazily
// in PersistentPreRunE and closed when execute returns.
type ctl struct {
	dbPath  string
	asJSON  bool
	verbose bool

	out io.Writer
	app *cli.App
}

// execute runs one expensectl invocation with args.
func execute(ctx context.Context, out io.Writer, args []string) (err error) {
	c := &ctl{out: out}
	defer func() {
		if cerr := c.close(); err == nil {
			err = cerr
		}
	}()

	root := c.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (c *ctl) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "expensectl",
		Short:         "Record and query expenses from the terminal",
		Long:          `expensectl runs the expense assistant's operations against the local store without going through the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
	}
	root.SetOut(c.out)

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (default: $SQLITE_DB_PATH)")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.recordCmd(),
		c.recentCmd(),
		c.summaryCmd(),
		c.compareCmd(),
		c.categoriesCmd(),
		c.categoryCmd(),
		c.recategorizeCmd(),
		c.budgetCmd(),
		c.askCmd(),
		c.reportCmd(),
		c.sweepCmd(),
		c.exportCmd(),
	)
	return root
}

func (c *ctl) open(ctx context.Context) error {
	if c.app != nil {
		return nil
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    "text",
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if c.dbPath != "" {
		cfg.SQLiteDBPath = c.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open expense store: %w", err)
	}
	app, err := cli.BuildApp(ctx, cfg, repo, logger)
	if err != nil {
		_ = repo.Close()
		return err
	}
	c.app = app
	return nil
}

func (c *ctl) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
