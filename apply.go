package reconciler

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// execInTx runs fn inside a database transaction. On success the
// transaction is committed; on error it is rolled back.
func execInTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrDatabase, err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", ErrDatabase, err)
	}

	return nil
}

// applyPlan executes the plan as one atomic unit: script bodies, ledger
// DDL (bootstrap only), and record inserts all commit or roll back
// together. Partial application is never observable.
func (e *Engine) applyPlan(ctx context.Context, p *Plan) error {
	return execInTx(ctx, e.db, func(tx pgx.Tx) error {
		if err := e.setTimeouts(ctx, tx); err != nil {
			return err
		}

		if p.Bootstrap {
			return applyBootstrap(ctx, tx, p)
		}

		return applyIncremental(ctx, tx, p)
	})
}

// setTimeouts applies the configured lock_timeout and statement_timeout
// to the transaction. Zero values leave the server defaults in place.
func (e *Engine) setTimeouts(ctx context.Context, tx pgx.Tx) error {
	if e.lockTimeout > 0 {
		sql := fmt.Sprintf("SET lock_timeout = '%dms'", e.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("%w: setting lock_timeout: %w", ErrDatabase, err)
		}
	}

	if e.statementTimeout > 0 {
		sql := fmt.Sprintf("SET statement_timeout = '%dms'", e.statementTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("%w: setting statement_timeout: %w", ErrDatabase, err)
		}
	}

	return nil
}

// applyBootstrap runs the schema set, declares the ledger relation, and
// seeds the bootstrap records, all on the given transaction.
func applyBootstrap(ctx context.Context, tx pgx.Tx, p *Plan) error {
	if p.SchemaSQL != "" {
		if _, err := tx.Exec(ctx, p.SchemaSQL); err != nil {
			return fmt.Errorf("%w: executing schema set: %w", ErrDatabase, err)
		}
	}

	if _, err := tx.Exec(ctx, createLedgerSQL); err != nil {
		return fmt.Errorf("%w: creating %s relation: %w", ErrDatabase, ledgerTable, err)
	}

	return insertRecords(ctx, tx, p.Records)
}

// applyIncremental runs each pending script body in order, then inserts
// the matching records, all on the given transaction.
func applyIncremental(ctx context.Context, tx pgx.Tx, p *Plan) error {
	for _, s := range p.Pending {
		if _, err := tx.Exec(ctx, s.Body); err != nil {
			return fmt.Errorf("%w: executing migration %s: %w", ErrDatabase, s.Name, err)
		}
	}

	return insertRecords(ctx, tx, p.Records)
}

func insertRecords(ctx context.Context, tx pgx.Tx, records []Record) error {
	for _, r := range records {
		if _, err := tx.Exec(ctx, insertRecordSQL, recordArgs(r)); err != nil {
			return fmt.Errorf("%w: recording migration %s: %w", ErrDatabase, r.FileName, err)
		}
	}

	return nil
}
