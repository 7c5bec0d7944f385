package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	reconciler "github.com/aqasim81/schema-reconciler"
	"github.com/aqasim81/schema-reconciler/internal/config"
	"github.com/aqasim81/schema-reconciler/internal/database"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, RECONCILE_DATABASE_URL, or database_url in config)",
)

var upCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "up",
	Short: "Apply whatever the database is missing",
	Long: `Reconcile the database with the script collections: bootstrap a fresh
database from the schema set, or run the migration scripts the ledger has
not seen yet. Everything one run applies commits or rolls back together.`,
	RunE: runUp,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	upCmd.Flags().Bool("no-sql-check", false, "skip the SQL preflight parse")
	upCmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	upCmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	noCheck, _ := cmd.Flags().GetBool("no-sql-check")

	lockTimeout := cfg.LockTimeout
	if cmd.Flags().Changed("lock-timeout") {
		lockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	stmtTimeout := cfg.StatementTimeout
	if cmd.Flags().Changed("statement-timeout") {
		stmtTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	ctx := commandContext(cmd)

	pool, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer pool.Close()

	engine := reconciler.New(pool,
		reconciler.WithLogger(newLogger(cfg.LogLevel)),
		reconciler.WithSQLCheck(!noCheck),
		reconciler.WithLockTimeout(lockTimeout),
		reconciler.WithStatementTimeout(stmtTimeout),
	)

	plan, err := engine.Preview(ctx, os.DirFS(cfg.SchemaDir), os.DirFS(cfg.MigrationsDir))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if plan.Empty() {
		fmt.Fprintln(out, "Database is up to date.")

		return nil
	}

	if plan.Bootstrap {
		fmt.Fprintf(out, "Fresh database: running the schema set, accounting %d migration(s).\n", len(plan.Records))
	} else {
		fmt.Fprintf(out, "Applying %d pending migration(s):\n", len(plan.Pending))

		for _, s := range plan.Pending {
			fmt.Fprintf(out, "  %s\n", s.Name)
		}
	}

	if err := engine.Apply(ctx, plan); err != nil {
		return err
	}

	fmt.Fprintln(out, "Reconciliation complete.")

	return nil
}

// commandContext returns the command's context, falling back to Background
// for commands constructed outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Pool, error) {
	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}
