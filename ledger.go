package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ledgerTable is the reserved relation name recording applied migrations.
const ledgerTable = "migrations"

const (
	// schemaInfoSQL aggregates the current schema's relations into one JSON
	// document of the form {"tables": {"name": "kind", ...}}.
	schemaInfoSQL = `SELECT json_build_object(
    'tables',
    (SELECT coalesce(json_object_agg(c.relname, c.relkind::text), '{}'::json)
       FROM pg_catalog.pg_class c
       JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
      WHERE n.nspname = current_schema()
        AND c.relkind IN ('r', 'p'))
)`

	// createLedgerSQL declares the ledger relation. Deliberately not
	// "IF NOT EXISTS": two processes racing to bootstrap the same database
	// must not both succeed, so the loser fails on the duplicate relation.
	createLedgerSQL = `CREATE TABLE migrations (
    "fileName" TEXT NOT NULL,
    number     INTEGER PRIMARY KEY,
    "dateRan"  TIMESTAMPTZ
)`

	selectAppliedSQL = `SELECT "fileName", number, "dateRan" FROM migrations`

	insertRecordSQL = `INSERT INTO migrations ("fileName", number, "dateRan")
VALUES (@fileName, @number, @dateRan)`
)

// Record is one row of the migrations ledger: a write-once note that a
// migration script has been accounted for. DateRan is nil for scripts
// seeded as already-satisfied at bootstrap, and set to the application
// time for scripts applied incrementally.
type Record struct {
	FileName string
	Number   int
	DateRan  *time.Time
}

// ledgerExists reports whether the migrations relation is present in the
// current schema.
func ledgerExists(ctx context.Context, db DB) (bool, error) {
	var raw []byte

	err := db.QueryRow(ctx, schemaInfoSQL).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%w: %w", ErrSchemaIntrospection, ErrInfoNoData)
		}

		return false, fmt.Errorf("%w: querying schema info: %w", ErrDatabase, err)
	}

	tables, err := tablesFromSchemaInfo(raw)
	if err != nil {
		return false, err
	}

	_, ok := tables[ledgerTable]

	return ok, nil
}

// tablesFromSchemaInfo walks the schema info document down to its table
// map, reporting a distinct introspection error for each way the shape
// can be wrong.
func tablesFromSchemaInfo(raw []byte) (map[string]any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding document %s: %w", ErrSchemaIntrospection, raw, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %w: document %s", ErrSchemaIntrospection, ErrInfoNotAnObject, raw)
	}

	tables, ok := obj["tables"]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q in document %s", ErrSchemaIntrospection, ErrInfoMissingKey, "tables", raw)
	}

	tableMap, ok := tables.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q holds %T", ErrSchemaIntrospection, ErrInfoWrongType, "tables", tables)
	}

	return tableMap, nil
}

// loadApplied returns every ledger record. Order is not significant; the
// planner re-sorts by number.
func loadApplied(ctx context.Context, db DB) ([]Record, error) {
	rows, err := db.Query(ctx, selectAppliedSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: querying ledger: %w", ErrDatabase, err)
	}
	defer rows.Close()

	applied, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		if scanErr := row.Scan(&r.FileName, &r.Number, &r.DateRan); scanErr != nil {
			return Record{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading ledger: %w", ErrDatabase, err)
	}

	return applied, nil
}

// recordArgs binds a Record to the insert statement's named parameters.
func recordArgs(r Record) pgx.NamedArgs {
	return pgx.NamedArgs{
		"fileName": r.FileName,
		"number":   r.Number,
		"dateRan":  r.DateRan,
	}
}
