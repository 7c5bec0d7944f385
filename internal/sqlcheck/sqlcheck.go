// Package sqlcheck parses script bodies before they are handed to the
// database. Everything a run executes happens inside one transaction, so
// a body that fails to parse, or that contains a statement PostgreSQL
// refuses to run in a transaction block, is rejected up front instead of
// wasting a transaction on it.
package sqlcheck

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ErrNonTransactional marks a statement that PostgreSQL cannot run
// inside a transaction block.
var ErrNonTransactional = errors.New("statement cannot run inside a transaction block")

// Check parses sql and returns an error for syntax errors or statements
// that cannot run inside a transaction block. Empty and whitespace-only
// input passes.
func Check(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("parsing SQL: %w", err)
	}

	for i, stmt := range tree.Stmts {
		if name := nonTransactional(stmt); name != "" {
			return fmt.Errorf("%w: %s (statement %d)", ErrNonTransactional, name, i+1)
		}
	}

	return nil
}

// nonTransactional names the statement kind when it cannot run inside a
// transaction block, and returns "" otherwise.
func nonTransactional(stmt *pg_query.RawStmt) string {
	switch node := stmt.Stmt.Node.(type) {
	case *pg_query.Node_IndexStmt:
		if node.IndexStmt.Concurrent {
			return "CREATE INDEX CONCURRENTLY"
		}
	case *pg_query.Node_DropStmt:
		if node.DropStmt.Concurrent {
			return "DROP INDEX CONCURRENTLY"
		}
	case *pg_query.Node_ReindexStmt:
		if hasDefElem(node.ReindexStmt.Params, "concurrently") {
			return "REINDEX CONCURRENTLY"
		}
	case *pg_query.Node_VacuumStmt:
		// VacuumStmt also covers ANALYZE, which is transactional.
		if node.VacuumStmt.IsVacuumcmd {
			return "VACUUM"
		}
	case *pg_query.Node_CreatedbStmt:
		return "CREATE DATABASE"
	case *pg_query.Node_DropdbStmt:
		return "DROP DATABASE"
	case *pg_query.Node_AlterSystemStmt:
		return "ALTER SYSTEM"
	}

	return ""
}

func hasDefElem(opts []*pg_query.Node, name string) bool {
	for _, opt := range opts {
		de, ok := opt.Node.(*pg_query.Node_DefElem)
		if !ok {
			continue
		}

		if de.DefElem.Defname == name {
			return true
		}
	}

	return false
}
