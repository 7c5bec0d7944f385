package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	reconciler "github.com/aqasim81/schema-reconciler"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show what up would apply without running it",
	Long: `Compute the reconciliation plan and print it. The database is read but
never written, so plan is safe to run against production at any time.`,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
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

	plan, err := engine.Preview(ctx, os.DirFS(cfg.SchemaDir), os.DirFS(cfg.MigrationsDir))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	switch {
	case plan.Empty():
		fmt.Fprintln(out, "Nothing to do: database is up to date.")
	case plan.Bootstrap:
		fmt.Fprintln(out, "Would bootstrap a fresh database:")
		fmt.Fprintln(out, "  run the schema set as one unit")
		fmt.Fprintln(out, "  create the migrations ledger")
		fmt.Fprintf(out, "  account %d migration(s) without running them\n", len(plan.Records))
	default:
		fmt.Fprintf(out, "Would apply %d migration(s):\n", len(plan.Pending))

		for _, s := range plan.Pending {
			fmt.Fprintf(out, "  %s\n", s.Name)
		}
	}

	return nil
}
