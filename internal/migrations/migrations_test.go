package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_ArePaired(t *testing.T) {
	names, err := fs.Glob(MigrationFiles, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	require.Equal(t, ups, downs)
}

func TestMigrationFiles_CreateDocumentsTable(t *testing.T) {
	content, err := fs.ReadFile(MigrationFiles, "001_create_documents_table.up.sql")
	require.NoError(t, err)

	sql := string(content)
	for _, column := range []string{"id", "seq", "name", "content", "active", "result", "errors", "created_at", "updated_at"} {
		require.Contains(t, sql, "\n    "+column+" ", column)
	}
}
