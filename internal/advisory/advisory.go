// Package advisory inspects script SQL for operations that are legal
// inside the reconciliation transaction but deserve operator attention:
// statements that rewrite whole tables, scan them under heavy locks, or
// discard data. Notices are informational only; nothing here stops a
// script from being applied.
package advisory

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Check inspects one parsed statement for a family of operations.
type Check interface {
	// Name returns a unique kebab-case identifier for the check.
	Name() string
	// Inspect examines a single parsed statement and returns any notices.
	// pos is the statement's 1-based position within the script.
	Inspect(stmt *pg_query.RawStmt, pos int) []Notice
}

// Advisor runs checks against script bodies.
type Advisor struct {
	checks []Check
}

// Option configures the Advisor.
type Option func(*Advisor)

// WithChecks replaces the built-in check set.
func WithChecks(checks ...Check) Option {
	return func(a *Advisor) { a.checks = checks }
}

// New creates an Advisor, using the built-in check set unless overridden.
func New(opts ...Option) *Advisor {
	a := &Advisor{}

	for _, opt := range opts {
		opt(a)
	}

	if a.checks == nil {
		a.checks = DefaultChecks()
	}

	return a
}

// DefaultChecks returns the built-in check set.
func DefaultChecks() []Check {
	return []Check{
		&rewriteCheck{},
		&validationScanCheck{},
		&blockingIndexCheck{},
		&explicitLockCheck{},
		&destructiveCheck{},
		&renameCheck{},
	}
}

// Review parses a script body and runs every check against each of its
// statements. name labels the report for display.
func (a *Advisor) Review(name, sql string) (Report, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return Report{}, fmt.Errorf("parsing %s: %w", name, err)
	}

	rep := Report{Script: name}

	for i, stmt := range result.Stmts {
		for _, c := range a.checks {
			for _, n := range c.Inspect(stmt, i+1) {
				if n.Level > rep.Max {
					rep.Max = n.Level
				}

				rep.Notices = append(rep.Notices, n)
			}
		}
	}

	return rep, nil
}
