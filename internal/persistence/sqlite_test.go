package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenSQLiteAppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	require.Equal(t, []string{"assignments", "issues", "notifications", "outbox_events", "schema_migrations", "users"}, tables)

	applied, err := MigrateSQLite(ctx, db)
	require.NoError(t, err)
	require.Zero(t, applied, "second run must be a no-op")
}

func TestLoadMigrationsSorted(t *testing.T) {
	for _, dir := range []string{"migrations/postgres", "migrations/sqlite"} {
		migrations, err := loadMigrations(dir)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		require.Equal(t, "001_init.sql", migrations[0].name)
	}
}
