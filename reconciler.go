// Package reconciler keeps a PostgreSQL database in step with an ordered
// collection of schema and migration scripts, typically embedded in the
// binary and reconciled on process startup.
//
// Scripts carry a numeric prefix in their file name that fixes their
// position. A fresh database is bootstrapped from the schema set in one
// shot and the migration set is recorded as already accounted for; a
// database that has been bootstrapped before runs only the migration
// scripts its ledger has not seen. Either way the work happens inside a
// single transaction, so a failure leaves the database exactly as it was.
package reconciler

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/aqasim81/schema-reconciler/internal/sqlcheck"
)

// DB is the subset of a pgx connection the engine needs. Both
// *pgxpool.Pool and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Engine reconciles script collections against a single database.
type Engine struct {
	db               DB
	log              zerolog.Logger
	sqlCheck         bool
	lockTimeout      time.Duration
	statementTimeout time.Duration

	now          func() time.Time
	ledgerExists func(ctx context.Context) (bool, error)
	loadApplied  func(ctx context.Context) ([]Record, error)
	apply        func(ctx context.Context, p *Plan) error
	checkSQL     func(name, sql string) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's structured logger. The default discards
// all output.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithSQLCheck toggles the preflight parse of plan bodies before the
// transaction opens. Enabled by default.
func WithSQLCheck(enabled bool) Option {
	return func(e *Engine) { e.sqlCheck = enabled }
}

// WithLockTimeout sets lock_timeout for the apply transaction. Zero
// leaves the server default in place.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lockTimeout = d }
}

// WithStatementTimeout sets statement_timeout for the apply transaction.
// Zero leaves the server default in place.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Engine) { e.statementTimeout = d }
}

// New creates an Engine for the given database handle.
func New(db DB, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		log:      zerolog.Nop(),
		sqlCheck: true,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.ledgerExists == nil {
		e.ledgerExists = func(ctx context.Context) (bool, error) { return ledgerExists(ctx, e.db) }
	}
	if e.loadApplied == nil {
		e.loadApplied = func(ctx context.Context) ([]Record, error) { return loadApplied(ctx, e.db) }
	}
	if e.apply == nil {
		e.apply = e.applyPlan
	}
	if e.checkSQL == nil {
		e.checkSQL = func(name, sql string) error {
			if err := sqlcheck.Check(sql); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrScriptInvalid, name, err)
			}

			return nil
		}
	}

	return e
}

// Run reconciles the database against the given script collections and
// applies whatever is missing as a single atomic unit. It is safe to
// call on every startup: when nothing is pending it does no writes.
func (e *Engine) Run(ctx context.Context, schemaFiles, migrationFiles fs.FS) error {
	plan, err := e.Preview(ctx, schemaFiles, migrationFiles)
	if err != nil {
		return err
	}

	if plan.Empty() {
		e.log.Debug().Msg("database is up to date")

		return nil
	}

	return e.Apply(ctx, plan)
}

// Apply executes a plan from Preview as one atomic unit. Empty plans are
// a no-op. Unless disabled, every SQL body is preflighted first.
func (e *Engine) Apply(ctx context.Context, p *Plan) error {
	if p.Empty() {
		return nil
	}

	if err := e.preflight(p); err != nil {
		return err
	}

	if p.Bootstrap {
		e.log.Info().Int("accounted", len(p.Records)).Msg("bootstrapping fresh database")
	} else {
		e.log.Info().Int("pending", len(p.Pending)).Msg("applying migrations")
	}

	if err := e.apply(ctx, p); err != nil {
		return err
	}

	e.log.Info().Msg("reconciliation complete")

	return nil
}

// Preview computes the plan Run would apply without writing anything.
// Both script collections are loaded and validated before the database
// is consulted, so a malformed file name fails even when the database
// is unreachable.
func (e *Engine) Preview(ctx context.Context, schemaFiles, migrationFiles fs.FS) (*Plan, error) {
	schema, err := LoadScripts(schemaFiles)
	if err != nil {
		return nil, fmt.Errorf("loading schema collection: %w", err)
	}

	migrations, err := LoadScripts(migrationFiles)
	if err != nil {
		return nil, fmt.Errorf("loading migration collection: %w", err)
	}

	e.log.Debug().
		Int("schema", len(schema)).
		Int("migrations", len(migrations)).
		Msg("loaded script collections")

	exists, err := e.ledgerExists(ctx)
	if err != nil {
		return nil, err
	}

	if !exists {
		return planBootstrap(schema, migrations), nil
	}

	applied, err := e.loadApplied(ctx)
	if err != nil {
		return nil, err
	}

	return planIncremental(migrations, applied, e.now())
}

// Applied returns the ledger's rows. The database must have been
// bootstrapped already.
func (e *Engine) Applied(ctx context.Context) ([]Record, error) {
	return e.loadApplied(ctx)
}

// LedgerExists reports whether the database has been bootstrapped.
func (e *Engine) LedgerExists(ctx context.Context) (bool, error) {
	return e.ledgerExists(ctx)
}

// preflight parses every SQL body the plan will execute, failing before
// the transaction opens when a body is unparseable or contains a
// statement that cannot run inside a transaction block.
func (e *Engine) preflight(p *Plan) error {
	if !e.sqlCheck {
		return nil
	}

	if p.Bootstrap && p.SchemaSQL != "" {
		if err := e.checkSQL("schema collection", p.SchemaSQL); err != nil {
			return err
		}
	}

	for _, s := range p.Pending {
		if err := e.checkSQL(s.Name, s.Body); err != nil {
			return err
		}
	}

	return nil
}

// Run reconciles and applies in one call with a throwaway Engine.
func Run(ctx context.Context, db DB, schemaFiles, migrationFiles fs.FS, opts ...Option) error {
	return New(db, opts...).Run(ctx, schemaFiles, migrationFiles)
}
