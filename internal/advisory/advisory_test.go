package advisory_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-reconciler/internal/advisory"
)

func TestReview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sql       string
		wantCheck string
		wantLevel advisory.Level
		wantTable string
	}{
		{
			name: "plain create table is clean",
			sql:  "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL);",
		},
		{
			name:      "alter column type",
			sql:       "ALTER TABLE orders ALTER COLUMN total TYPE NUMERIC(12,2);",
			wantCheck: "table-rewrite",
			wantLevel: advisory.Warning,
			wantTable: "orders",
		},
		{
			name:      "add column with volatile default",
			sql:       "ALTER TABLE users ADD COLUMN token UUID DEFAULT gen_random_uuid();",
			wantCheck: "table-rewrite",
			wantLevel: advisory.Warning,
			wantTable: "users",
		},
		{
			name: "add column with constant default is clean",
			sql:  "ALTER TABLE users ADD COLUMN active BOOLEAN DEFAULT true;",
		},
		{
			name: "add column with cast constant default is clean",
			sql:  "ALTER TABLE users ADD COLUMN prefs JSONB DEFAULT '{}'::jsonb;",
		},
		{
			name: "add column without default is clean",
			sql:  "ALTER TABLE users ADD COLUMN bio TEXT;",
		},
		{
			name:      "set not null",
			sql:       "ALTER TABLE users ALTER COLUMN email SET NOT NULL;",
			wantCheck: "validation-scan",
			wantLevel: advisory.Warning,
			wantTable: "users",
		},
		{
			name:      "add check constraint without not valid",
			sql:       "ALTER TABLE orders ADD CONSTRAINT total_positive CHECK (total > 0);",
			wantCheck: "validation-scan",
			wantLevel: advisory.Warning,
			wantTable: "orders",
		},
		{
			name: "add check constraint not valid is clean",
			sql:  "ALTER TABLE orders ADD CONSTRAINT total_positive CHECK (total > 0) NOT VALID;",
		},
		{
			name:      "add foreign key without not valid",
			sql:       "ALTER TABLE orders ADD CONSTRAINT orders_user_fk FOREIGN KEY (user_id) REFERENCES users(id);",
			wantCheck: "validation-scan",
			wantLevel: advisory.Warning,
			wantTable: "orders",
		},
		{
			name: "add unique constraint is clean",
			sql:  "ALTER TABLE users ADD CONSTRAINT users_email_key UNIQUE (email);",
		},
		{
			name:      "create index",
			sql:       "CREATE INDEX idx_users_email ON users (email);",
			wantCheck: "blocking-index",
			wantLevel: advisory.Warning,
			wantTable: "users",
		},
		{
			name:      "schema-qualified table name",
			sql:       "CREATE INDEX idx_events_at ON billing.events (occurred_at);",
			wantCheck: "blocking-index",
			wantLevel: advisory.Warning,
			wantTable: "billing.events",
		},
		{
			name:      "lock table",
			sql:       "LOCK TABLE users IN ACCESS EXCLUSIVE MODE;",
			wantCheck: "explicit-lock",
			wantLevel: advisory.Warning,
			wantTable: "users",
		},
		{
			name:      "drop table",
			sql:       "DROP TABLE sessions;",
			wantCheck: "destructive",
			wantLevel: advisory.Danger,
			wantTable: "sessions",
		},
		{
			name:      "drop table if exists",
			sql:       "DROP TABLE IF EXISTS sessions;",
			wantCheck: "destructive",
			wantLevel: advisory.Danger,
			wantTable: "sessions",
		},
		{
			name: "drop index is clean",
			sql:  "DROP INDEX idx_users_email;",
		},
		{
			name:      "truncate",
			sql:       "TRUNCATE audit_log;",
			wantCheck: "destructive",
			wantLevel: advisory.Danger,
			wantTable: "audit_log",
		},
		{
			name:      "rename table",
			sql:       "ALTER TABLE users RENAME TO accounts;",
			wantCheck: "rename",
			wantLevel: advisory.Info,
			wantTable: "users",
		},
		{
			name:      "rename column",
			sql:       "ALTER TABLE users RENAME COLUMN name TO full_name;",
			wantCheck: "rename",
			wantLevel: advisory.Info,
			wantTable: "users",
		},
		{
			name: "rename index is clean",
			sql:  "ALTER INDEX idx_users_email RENAME TO users_email_idx;",
		},
		{
			name: "plain insert is clean",
			sql:  "INSERT INTO settings (key, value) VALUES ('retention', '90d');",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rep, err := advisory.New().Review("script.sql", tt.sql)
			require.NoError(t, err)

			if tt.wantCheck == "" {
				assert.Empty(t, rep.Notices)
				assert.Equal(t, advisory.Clean, rep.Max)

				return
			}

			require.Len(t, rep.Notices, 1)

			n := rep.Notices[0]
			assert.Equal(t, tt.wantCheck, n.Check)
			assert.Equal(t, tt.wantLevel, n.Level)
			assert.Equal(t, tt.wantTable, n.Table)
			assert.Equal(t, 1, n.Statement)
			assert.NotEmpty(t, n.Summary)
			assert.NotEmpty(t, n.Hint)

			assert.Equal(t, tt.wantLevel, rep.Max)
		})
	}
}

func TestReview_unparseableSQL_returnsError(t *testing.T) {
	t.Parallel()

	_, err := advisory.New().Review("1_bad.sql", "CREATE TABLE (")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1_bad.sql")
}

func TestReview_multipleStatements_reportsPositions(t *testing.T) {
	t.Parallel()

	sql := "ALTER TABLE users RENAME TO accounts; DROP TABLE sessions;"

	rep, err := advisory.New().Review("2_cleanup.sql", sql)
	require.NoError(t, err)
	require.Len(t, rep.Notices, 2)

	assert.Equal(t, "rename", rep.Notices[0].Check)
	assert.Equal(t, 1, rep.Notices[0].Statement)
	assert.Equal(t, "destructive", rep.Notices[1].Check)
	assert.Equal(t, 2, rep.Notices[1].Statement)

	// The report grades at its worst notice.
	assert.Equal(t, advisory.Danger, rep.Max)
	assert.True(t, rep.Dangerous())
}

func TestReview_multipleAlterCommands_oneNoticeEach(t *testing.T) {
	t.Parallel()

	sql := "ALTER TABLE users ALTER COLUMN plan TYPE TEXT, ALTER COLUMN email SET NOT NULL;"

	rep, err := advisory.New().Review("3_tighten.sql", sql)
	require.NoError(t, err)
	require.Len(t, rep.Notices, 2)

	assert.Equal(t, "table-rewrite", rep.Notices[0].Check)
	assert.Equal(t, "validation-scan", rep.Notices[1].Check)
	assert.Equal(t, advisory.Warning, rep.Max)
	assert.False(t, rep.Dangerous())
}

func TestNew_withChecks_overridesDefaults(t *testing.T) {
	t.Parallel()

	adv := advisory.New(advisory.WithChecks(noticeEverything{}))

	rep, err := adv.Review("x.sql", "SELECT 1;")
	require.NoError(t, err)
	require.Len(t, rep.Notices, 1)
	assert.Equal(t, "notice-everything", rep.Notices[0].Check)
}

func TestLevel_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level advisory.Level
		want  string
	}{
		{advisory.Clean, "CLEAN"},
		{advisory.Info, "INFO"},
		{advisory.Warning, "WARNING"},
		{advisory.Danger, "DANGER"},
		{advisory.Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

// noticeEverything raises one Info notice for every statement.
type noticeEverything struct{}

func (noticeEverything) Name() string { return "notice-everything" }

func (noticeEverything) Inspect(_ *pg_query.RawStmt, pos int) []advisory.Notice {
	return []advisory.Notice{{Check: "notice-everything", Level: advisory.Info, Statement: pos}}
}
