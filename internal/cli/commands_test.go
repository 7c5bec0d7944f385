package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconciler "github.com/aqasim81/schema-reconciler"
	"github.com/aqasim81/schema-reconciler/internal/config"
)

// setupTestConfig sets AppConfig for the duration of the test and restores it on cleanup.
func setupTestConfig(t *testing.T, cfg *config.Config) {
	t.Helper()

	old := AppConfig
	AppConfig = cfg

	t.Cleanup(func() { AppConfig = old })
}

func newOutCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	return cmd, buf
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRunUp_noDatabaseURL_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, config.New())

	cmd, _ := newOutCmd()

	err := runUp(cmd, nil)
	require.ErrorIs(t, err, errDatabaseURLRequired)
}

func TestRunPlan_noDatabaseURL_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, config.New())

	cmd, _ := newOutCmd()

	err := runPlan(cmd, nil)
	require.ErrorIs(t, err, errDatabaseURLRequired)
}

func TestRunStatus_noDatabaseURL_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, config.New())

	cmd, _ := newOutCmd()

	err := runStatus(cmd, nil)
	require.ErrorIs(t, err, errDatabaseURLRequired)
}

func TestRunValidate_validCollections_printsOK(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	schemaDir := t.TempDir()
	migrationsDir := t.TempDir()
	writeScript(t, schemaDir, "1_init.sql", "CREATE TABLE users (id INT);")
	writeScript(t, migrationsDir, "1_add_email.sql", "ALTER TABLE users ADD COLUMN email TEXT;")
	writeScript(t, migrationsDir, "2_add_index.sql", "CREATE INDEX idx_email ON users (email);")

	cfg := config.New()
	cfg.SchemaDir = schemaDir
	cfg.MigrationsDir = migrationsDir
	setupTestConfig(t, cfg)

	cmd, buf := newOutCmd()

	err := runValidate(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "OK: 1 schema script(s), 2 migration script(s).")
}

func TestRunValidate_emptyCollections_printsOK(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	cfg := config.New()
	cfg.SchemaDir = t.TempDir()
	cfg.MigrationsDir = t.TempDir()
	setupTestConfig(t, cfg)

	cmd, buf := newOutCmd()

	err := runValidate(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "OK: 0 schema script(s), 0 migration script(s).")
}

func TestRunValidate_malformedName_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	schemaDir := t.TempDir()
	writeScript(t, schemaDir, "init.sql", "CREATE TABLE users (id INT);")

	cfg := config.New()
	cfg.SchemaDir = schemaDir
	cfg.MigrationsDir = t.TempDir()
	setupTestConfig(t, cfg)

	cmd, _ := newOutCmd()

	err := runValidate(cmd, nil)
	require.ErrorIs(t, err, reconciler.ErrFileNameMalformed)
	assert.Contains(t, err.Error(), "schema collection")
}

func TestRunValidate_unparseableSQL_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	migrationsDir := t.TempDir()
	writeScript(t, migrationsDir, "1_bad.sql", "CREATE TABLE (")

	cfg := config.New()
	cfg.SchemaDir = t.TempDir()
	cfg.MigrationsDir = migrationsDir
	setupTestConfig(t, cfg)

	cmd, _ := newOutCmd()

	err := runValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration collection")
	assert.Contains(t, err.Error(), "1_bad.sql")
}

func TestRunValidate_nonTransactionalSQL_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	migrationsDir := t.TempDir()
	writeScript(t, migrationsDir, "1_vacuum.sql", "VACUUM users;")

	cfg := config.New()
	cfg.SchemaDir = t.TempDir()
	cfg.MigrationsDir = migrationsDir
	setupTestConfig(t, cfg)

	cmd, _ := newOutCmd()

	err := runValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VACUUM")
}

func TestRunValidate_lockHeavyScript_printsNotices(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	migrationsDir := t.TempDir()
	writeScript(t, migrationsDir, "1_add_index.sql", "CREATE INDEX idx_users_email ON users (email);")

	cfg := config.New()
	cfg.SchemaDir = t.TempDir()
	cfg.MigrationsDir = migrationsDir
	setupTestConfig(t, cfg)

	cmd, buf := newOutCmd()

	err := runValidate(cmd, nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "=== migration 1_add_index.sql ===")
	assert.Contains(t, buf.String(), "[WARNING]")
	assert.Contains(t, buf.String(), "blocking-index")
	assert.Contains(t, buf.String(), "1 notice(s) across 1 script(s).")
	assert.Contains(t, buf.String(), "OK: 0 schema script(s), 1 migration script(s).")
}

func TestRunValidate_destructiveScript_okByDefault(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	migrationsDir := t.TempDir()
	writeScript(t, migrationsDir, "1_drop_legacy.sql", "DROP TABLE legacy_events;")

	cfg := config.New()
	cfg.SchemaDir = t.TempDir()
	cfg.MigrationsDir = migrationsDir
	setupTestConfig(t, cfg)

	cmd, buf := newOutCmd()

	err := runValidate(cmd, nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "[DANGER]")
	assert.Contains(t, buf.String(), "OK:")
}

func TestRunValidate_destructiveScript_failOnDanger(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	migrationsDir := t.TempDir()
	writeScript(t, migrationsDir, "1_drop_legacy.sql", "DROP TABLE legacy_events;")

	cfg := config.New()
	cfg.SchemaDir = t.TempDir()
	cfg.MigrationsDir = migrationsDir
	setupTestConfig(t, cfg)

	cmd, buf := newOutCmd()
	cmd.Flags().Bool("fail-on-danger", false, "")
	require.NoError(t, cmd.Flags().Set("fail-on-danger", "true"))

	err := runValidate(cmd, nil)
	require.ErrorIs(t, err, errDangerousScripts)

	// Notices are still printed before the failure.
	assert.Contains(t, buf.String(), "[DANGER]")
	assert.NotContains(t, buf.String(), "OK:")
}
