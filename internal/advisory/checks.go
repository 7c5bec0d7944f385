package advisory

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

const lockAccessExclusive = "ACCESS EXCLUSIVE"

// relationName renders a RangeVar as a display name.
func relationName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}

// alterTableCmds unwraps an ALTER TABLE statement into its commands.
// Returns a nil statement for anything else.
func alterTableCmds(stmt *pg_query.RawStmt) (*pg_query.AlterTableStmt, []*pg_query.AlterTableCmd) {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_AlterTableStmt)
	if !ok {
		return nil, nil
	}

	alt := node.AlterTableStmt
	cmds := make([]*pg_query.AlterTableCmd, 0, len(alt.Cmds))

	for _, c := range alt.Cmds {
		if cmd, ok := c.Node.(*pg_query.Node_AlterTableCmd); ok {
			cmds = append(cmds, cmd.AlterTableCmd)
		}
	}

	return alt, cmds
}

// rewriteCheck flags ALTER TABLE forms that rewrite the whole table while
// holding an ACCESS EXCLUSIVE lock: column type changes, and ADD COLUMN
// with a volatile default.
type rewriteCheck struct{}

func (c *rewriteCheck) Name() string { return "table-rewrite" }

func (c *rewriteCheck) Inspect(stmt *pg_query.RawStmt, pos int) []Notice {
	alt, cmds := alterTableCmds(stmt)
	if alt == nil {
		return nil
	}

	var notices []Notice

	for _, cmd := range cmds {
		switch cmd.Subtype {
		case pg_query.AlterTableType_AT_AlterColumnType:
			notices = append(notices, Notice{
				Check:     c.Name(),
				Level:     Warning,
				Table:     relationName(alt.Relation),
				Statement: pos,
				Summary:   "ALTER COLUMN TYPE rewrites the whole table",
				Hint:      "Stage it: add a new column, backfill, swap, drop the old one",
				Lock:      lockAccessExclusive,
			})
		case pg_query.AlterTableType_AT_AddColumn:
			if !addsVolatileDefault(cmd) {
				continue
			}

			notices = append(notices, Notice{
				Check:     c.Name(),
				Level:     Warning,
				Table:     relationName(alt.Relation),
				Statement: pos,
				Summary:   "ADD COLUMN with a volatile default rewrites the whole table",
				Hint:      "Add the column without a default, then backfill in batches",
				Lock:      lockAccessExclusive,
			})
		default:
		}
	}

	return notices
}

// addsVolatileDefault reports whether an ADD COLUMN command carries a
// DEFAULT the server cannot satisfy with a stored constant. Constant
// defaults take the fast path and cost nothing.
func addsVolatileDefault(cmd *pg_query.AlterTableCmd) bool {
	if cmd.Def == nil {
		return false
	}

	col, ok := cmd.Def.Node.(*pg_query.Node_ColumnDef)
	if !ok {
		return false
	}

	for _, cons := range col.ColumnDef.Constraints {
		cn, ok := cons.Node.(*pg_query.Node_Constraint)
		if !ok || cn.Constraint.Contype != pg_query.ConstrType_CONSTR_DEFAULT {
			continue
		}

		return volatileExpr(cn.Constraint.RawExpr)
	}

	return false
}

// volatileExpr treats constants and casts of constants as stable and
// everything else (now(), gen_random_uuid(), subqueries) as volatile.
func volatileExpr(node *pg_query.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_AConst:
		return false
	case *pg_query.Node_TypeCast:
		if n.TypeCast.Arg != nil {
			if _, ok := n.TypeCast.Arg.Node.(*pg_query.Node_AConst); ok {
				return false
			}
		}

		return true
	default:
		return true
	}
}

// validationScanCheck flags ALTER TABLE forms that scan every row under
// an ACCESS EXCLUSIVE lock to validate existing data: SET NOT NULL, and
// CHECK or FOREIGN KEY constraints added without NOT VALID.
type validationScanCheck struct{}

func (c *validationScanCheck) Name() string { return "validation-scan" }

func (c *validationScanCheck) Inspect(stmt *pg_query.RawStmt, pos int) []Notice {
	alt, cmds := alterTableCmds(stmt)
	if alt == nil {
		return nil
	}

	var notices []Notice

	for _, cmd := range cmds {
		switch cmd.Subtype {
		case pg_query.AlterTableType_AT_SetNotNull:
			notices = append(notices, Notice{
				Check:     c.Name(),
				Level:     Warning,
				Table:     relationName(alt.Relation),
				Statement: pos,
				Summary:   "SET NOT NULL scans every row under lock to prove no NULLs exist",
				Hint:      "Add CHECK (col IS NOT NULL) NOT VALID first, validate it, then SET NOT NULL",
				Lock:      lockAccessExclusive,
			})
		case pg_query.AlterTableType_AT_AddConstraint:
			if !unvalidatedConstraint(cmd) {
				continue
			}

			notices = append(notices, Notice{
				Check:     c.Name(),
				Level:     Warning,
				Table:     relationName(alt.Relation),
				Statement: pos,
				Summary:   "ADD CONSTRAINT without NOT VALID scans every row under lock",
				Hint:      "Add the constraint NOT VALID, then VALIDATE CONSTRAINT separately",
				Lock:      lockAccessExclusive,
			})
		default:
		}
	}

	return notices
}

// unvalidatedConstraint reports whether the command adds a CHECK or
// FOREIGN KEY constraint that validates existing rows immediately.
func unvalidatedConstraint(cmd *pg_query.AlterTableCmd) bool {
	if cmd.Def == nil {
		return false
	}

	cn, ok := cmd.Def.Node.(*pg_query.Node_Constraint)
	if !ok {
		return false
	}

	cons := cn.Constraint
	if cons.Contype != pg_query.ConstrType_CONSTR_CHECK &&
		cons.Contype != pg_query.ConstrType_CONSTR_FOREIGN {
		return false
	}

	return !cons.SkipValidation
}

// blockingIndexCheck flags CREATE INDEX, which blocks writes to the table
// until the build finishes. The concurrent form cannot run inside the
// reconciliation transaction, so every index here is the blocking kind.
type blockingIndexCheck struct{}

func (c *blockingIndexCheck) Name() string { return "blocking-index" }

func (c *blockingIndexCheck) Inspect(stmt *pg_query.RawStmt, pos int) []Notice {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
	if !ok || node.IndexStmt.Concurrent {
		return nil
	}

	return []Notice{{
		Check:     c.Name(),
		Level:     Warning,
		Table:     relationName(node.IndexStmt.Relation),
		Statement: pos,
		Summary:   "CREATE INDEX blocks writes to the table while it builds",
		Hint:      "Reconcile in a maintenance window when the table is large",
		Lock:      "SHARE",
	}}
}

// explicitLockCheck flags LOCK TABLE statements; the lock is held until
// the whole run commits.
type explicitLockCheck struct{}

func (c *explicitLockCheck) Name() string { return "explicit-lock" }

func (c *explicitLockCheck) Inspect(stmt *pg_query.RawStmt, pos int) []Notice {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_LockStmt)
	if !ok {
		return nil
	}

	var notices []Notice

	for _, rel := range node.LockStmt.Relations {
		rv, ok := rel.Node.(*pg_query.Node_RangeVar)
		if !ok {
			continue
		}

		notices = append(notices, Notice{
			Check:     c.Name(),
			Level:     Warning,
			Table:     relationName(rv.RangeVar),
			Statement: pos,
			Summary:   "explicit LOCK TABLE blocks other sessions until the run commits",
			Hint:      "Drop the explicit lock and let each statement take its own",
			Lock:      "EXPLICIT",
		})
	}

	return notices
}

// destructiveCheck flags DROP TABLE and TRUNCATE. Both discard data that
// no rollback can bring back once the run commits.
type destructiveCheck struct{}

func (c *destructiveCheck) Name() string { return "destructive" }

func (c *destructiveCheck) Inspect(stmt *pg_query.RawStmt, pos int) []Notice {
	switch node := stmt.Stmt.Node.(type) {
	case *pg_query.Node_DropStmt:
		return c.dropNotice(node.DropStmt, pos)
	case *pg_query.Node_TruncateStmt:
		return c.truncateNotice(node.TruncateStmt, pos)
	default:
		return nil
	}
}

func (c *destructiveCheck) dropNotice(drop *pg_query.DropStmt, pos int) []Notice {
	if drop.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}

	return []Notice{{
		Check:     c.Name(),
		Level:     Danger,
		Table:     strings.Join(droppedTables(drop), ", "),
		Statement: pos,
		Summary:   "DROP TABLE permanently deletes the table and its data",
		Hint:      "Confirm a backup exists and nothing still reads the table",
		Lock:      lockAccessExclusive,
	}}
}

func (c *destructiveCheck) truncateNotice(trunc *pg_query.TruncateStmt, pos int) []Notice {
	var tables []string

	for _, rel := range trunc.Relations {
		if rv, ok := rel.Node.(*pg_query.Node_RangeVar); ok {
			tables = append(tables, relationName(rv.RangeVar))
		}
	}

	return []Notice{{
		Check:     c.Name(),
		Level:     Danger,
		Table:     strings.Join(tables, ", "),
		Statement: pos,
		Summary:   "TRUNCATE discards every row in the table",
		Hint:      "Confirm a backup exists before truncating",
		Lock:      lockAccessExclusive,
	}}
}

// droppedTables renders the (possibly schema-qualified) names in a
// DROP TABLE statement.
func droppedTables(drop *pg_query.DropStmt) []string {
	var tables []string

	for _, obj := range drop.Objects {
		list, ok := obj.Node.(*pg_query.Node_List)
		if !ok {
			continue
		}

		var parts []string

		for _, item := range list.List.Items {
			if s, ok := item.Node.(*pg_query.Node_String_); ok {
				parts = append(parts, s.String_.Sval)
			}
		}

		if len(parts) > 0 {
			tables = append(tables, strings.Join(parts, "."))
		}
	}

	return tables
}

// renameCheck flags table and column renames. The rename itself is
// instant, but readers deployed against the old name break the moment
// the run commits.
type renameCheck struct{}

func (c *renameCheck) Name() string { return "rename" }

func (c *renameCheck) Inspect(stmt *pg_query.RawStmt, pos int) []Notice {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_RenameStmt)
	if !ok {
		return nil
	}

	rename := node.RenameStmt

	var summary string

	switch rename.RenameType {
	case pg_query.ObjectType_OBJECT_TABLE:
		summary = "RENAME TABLE breaks readers that still use the old name"
	case pg_query.ObjectType_OBJECT_COLUMN:
		summary = "RENAME COLUMN breaks readers that still use the old name"
	default:
		return nil
	}

	return []Notice{{
		Check:     c.Name(),
		Level:     Info,
		Table:     relationName(rename.Relation),
		Statement: pos,
		Summary:   summary,
		Hint:      "Deploy readers that understand both names before renaming",
		Lock:      lockAccessExclusive,
	}}
}
