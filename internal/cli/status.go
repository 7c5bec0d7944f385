package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	reconciler "github.com/aqasim81/schema-reconciler"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show the ledger and what is still pending",
	Long: `Display the migrations ledger: every accounted migration with the time
it ran, or "bootstrap" for scripts seeded as already satisfied, followed by
the number of migrations still pending.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	ctx := commandContext(cmd)

	pool, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer pool.Close()

	engine := reconciler.New(pool, reconciler.WithLogger(newLogger(cfg.LogLevel)))
	out := cmd.OutOrStdout()

	exists, err := engine.LedgerExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		fmt.Fprintln(out, "Database has not been bootstrapped (no migrations ledger).")

		return nil
	}

	records, err := engine.Applied(ctx)
	if err != nil {
		return err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Number < records[j].Number })

	if len(records) == 0 {
		fmt.Fprintln(out, "Ledger is empty: no migrations accounted for.")
	} else {
		fmt.Fprintf(out, "%d migration(s) accounted for:\n", len(records))

		for _, r := range records {
			ran := "bootstrap"
			if r.DateRan != nil {
				ran = r.DateRan.Format(time.RFC3339)
			}

			fmt.Fprintf(out, "  %4d  %-40s  %s\n", r.Number, r.FileName, ran)
		}
	}

	plan, err := engine.Preview(ctx, os.DirFS(cfg.SchemaDir), os.DirFS(cfg.MigrationsDir))
	if err != nil {
		return fmt.Errorf("comparing against script collections: %w", err)
	}

	if plan.Empty() {
		fmt.Fprintln(out, "Database is up to date.")
	} else {
		fmt.Fprintf(out, "%d migration(s) pending.\n", len(plan.Pending))
	}

	return nil
}
