package reconciler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Plan describes the work one reconciliation pass must apply atomically:
// either a bootstrap plan (ledger absent: run the schema set once and
// seed the ledger) or an incremental plan (run the pending migration
// scripts and record them).
type Plan struct {
	Bootstrap bool     // ledger absent: create it and run the schema set
	SchemaSQL string   // concatenated schema bodies, bootstrap only
	Pending   []Script // migration scripts to execute, ascending order
	Records   []Record // ledger rows to insert, one per accounted script
}

// Empty reports whether applying the plan would change nothing. A
// bootstrap plan is never empty: it creates the ledger even when both
// script sets are empty.
func (p *Plan) Empty() bool {
	return !p.Bootstrap && len(p.Pending) == 0
}

// planBootstrap builds the plan for a database without a ledger. The
// schema set runs once as the current full schema; every migration script
// is seeded into the ledger as already satisfied, with no DateRan and
// without executing its body.
func planBootstrap(schema, migrations []Script) *Plan {
	bodies := make([]string, len(schema))
	for i, s := range schema {
		bodies[i] = s.Body
	}

	records := make([]Record, len(migrations))
	for i, m := range migrations {
		records[i] = Record{FileName: m.Name, Number: m.Number}
	}

	return &Plan{
		Bootstrap: true,
		SchemaSQL: strings.Join(bodies, "\n"),
		Records:   records,
	}
}

// planIncremental matches the ledger against the current migration set
// and plans the scripts not yet applied. Every applied record must pair
// with the script at its number: a missing script is fatal drift
// (ErrFileNoLongerExists), as is a script whose name changed
// (ErrFileMismatch). Records are checked in ascending number order so the
// lowest offending number is the one reported.
func planIncremental(scripts []Script, applied []Record, now time.Time) (*Plan, error) {
	working := make([]Script, len(scripts))
	copy(working, scripts)

	history := make([]Record, len(applied))
	copy(history, applied)
	sort.Slice(history, func(i, j int) bool { return history[i].Number < history[j].Number })

	for _, rec := range history {
		idx := -1

		for i := range working {
			if working[i].Number == rec.Number {
				idx = i
				break
			}
		}

		if idx < 0 {
			return nil, fmt.Errorf("%w: number %d, recorded file name %q",
				ErrFileNoLongerExists, rec.Number, rec.FileName)
		}

		if working[idx].Name != rec.FileName {
			return nil, fmt.Errorf("%w: script %q does not match recorded file name %q",
				ErrFileMismatch, working[idx].Name, rec.FileName)
		}

		working = append(working[:idx], working[idx+1:]...)
	}

	if len(working) == 0 {
		return &Plan{}, nil
	}

	ranAt := now.UTC()
	records := make([]Record, len(working))

	for i, s := range working {
		t := ranAt
		records[i] = Record{FileName: s.Name, Number: s.Number, DateRan: &t}
	}

	return &Plan{Pending: working, Records: records}, nil
}
