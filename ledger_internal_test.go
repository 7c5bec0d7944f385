package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesFromSchemaInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr error
		check   func(t *testing.T, tables map[string]any)
	}{
		{
			name: "document with tables",
			raw:  `{"tables": {"migrations": "r", "users": "r"}}`,
			check: func(t *testing.T, tables map[string]any) {
				t.Helper()
				assert.Len(t, tables, 2)
				assert.Contains(t, tables, "migrations")
				assert.Contains(t, tables, "users")
			},
		},
		{
			name: "empty tables object",
			raw:  `{"tables": {}}`,
			check: func(t *testing.T, tables map[string]any) {
				t.Helper()
				assert.Empty(t, tables)
			},
		},
		{
			name:    "unparseable document",
			raw:     `{"tables":`,
			wantErr: ErrSchemaIntrospection,
		},
		{
			name:    "document is not an object",
			raw:     `["migrations"]`,
			wantErr: ErrInfoNotAnObject,
		},
		{
			name:    "tables key missing",
			raw:     `{"relations": {}}`,
			wantErr: ErrInfoMissingKey,
		},
		{
			name:    "tables key holds wrong type",
			raw:     `{"tables": ["migrations"]}`,
			wantErr: ErrInfoWrongType,
		},
		{
			name:    "tables key is null",
			raw:     `{"tables": null}`,
			wantErr: ErrInfoWrongType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tables, err := tablesFromSchemaInfo([]byte(tt.raw))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrSchemaIntrospection, "every shape error is an introspection error")

				return
			}

			require.NoError(t, err)

			if tt.check != nil {
				tt.check(t, tables)
			}
		})
	}
}

func TestRecordArgs(t *testing.T) {
	t.Parallel()

	ranAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	args := recordArgs(Record{FileName: "3_add_index.sql", Number: 3, DateRan: &ranAt})

	assert.Equal(t, "3_add_index.sql", args["fileName"])
	assert.Equal(t, 3, args["number"])
	assert.Equal(t, &ranAt, args["dateRan"])
}

func TestRecordArgs_nilDateRan(t *testing.T) {
	t.Parallel()

	args := recordArgs(Record{FileName: "1_init.sql", Number: 1})

	require.Contains(t, args, "dateRan")
	assert.Equal(t, (*time.Time)(nil), args["dateRan"])
}
