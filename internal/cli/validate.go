package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	reconciler "github.com/aqasim81/schema-reconciler"
	"github.com/aqasim81/schema-reconciler/internal/advisory"
	"github.com/aqasim81/schema-reconciler/internal/sqlcheck"
)

var validateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "validate",
	Short: "Check the script collections without touching the database",
	Long: `Load both script collections, validate their naming and numbering, and
parse every SQL body with the PostgreSQL parser. Statements that will hold
heavy locks or discard data when applied are reported as notices. No
database connection is made, so validate fits in CI next to the scripts
themselves.`,
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	validateCmd.Flags().Bool("fail-on-danger", false, "exit non-zero when a danger-level notice is raised")
	rootCmd.AddCommand(validateCmd)
}

// errDangerousScripts is returned when --fail-on-danger is set and a
// script raised a danger-level notice.
var errDangerousScripts = errors.New("danger-level notices raised")

func runValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	schema, err := validateCollection("schema", AppConfig.SchemaDir)
	if err != nil {
		return err
	}

	migrations, err := validateCollection("migration", AppConfig.MigrationsDir)
	if err != nil {
		return err
	}

	reports, err := reviewCollections(schema, migrations)
	if err != nil {
		return err
	}

	printNotices(out, reports)

	failOnDanger, _ := cmd.Flags().GetBool("fail-on-danger")
	if failOnDanger && anyDangerous(reports) {
		return errDangerousScripts
	}

	fmt.Fprintf(out, "OK: %d schema script(s), %d migration script(s).\n", len(schema), len(migrations))

	return nil
}

func validateCollection(label, dir string) ([]reconciler.Script, error) {
	scripts, err := reconciler.LoadScripts(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("%s collection: %w", label, err)
	}

	for _, s := range scripts {
		if err := sqlcheck.Check(s.Body); err != nil {
			return nil, fmt.Errorf("%s collection: %s: %w", label, s.Name, err)
		}
	}

	return scripts, nil
}

// reviewCollections runs the advisory checks over both collections and
// returns the reports that carry notices.
func reviewCollections(schema, migrations []reconciler.Script) ([]advisory.Report, error) {
	adv := advisory.New()

	var reports []advisory.Report

	review := func(label string, scripts []reconciler.Script) error {
		for _, s := range scripts {
			rep, err := adv.Review(label+" "+s.Name, s.Body)
			if err != nil {
				return fmt.Errorf("%s collection: %w", label, err)
			}

			if len(rep.Notices) > 0 {
				reports = append(reports, rep)
			}
		}

		return nil
	}

	if err := review("schema", schema); err != nil {
		return nil, err
	}

	if err := review("migration", migrations); err != nil {
		return nil, err
	}

	return reports, nil
}

func printNotices(out io.Writer, reports []advisory.Report) {
	total := 0

	for _, rep := range reports {
		fmt.Fprintf(out, "\n=== %s ===\n", rep.Script)

		for _, n := range rep.Notices {
			fmt.Fprintf(out, "  [%s] statement %d: %s\n", n.Level, n.Statement, n.Summary)
			fmt.Fprintf(out, "    Table: %s\n", n.Table)
			fmt.Fprintf(out, "    Check: %s\n", n.Check)
			fmt.Fprintf(out, "    Lock:  %s\n", n.Lock)
			fmt.Fprintf(out, "    Hint:  %s\n\n", n.Hint)
		}

		total += len(rep.Notices)
	}

	if total > 0 {
		fmt.Fprintf(out, "%d notice(s) across %d script(s).\n", total, len(reports))
	}
}

func anyDangerous(reports []advisory.Report) bool {
	for _, rep := range reports {
		if rep.Dangerous() {
			return true
		}
	}

	return false
}
