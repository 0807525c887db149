package migration

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/quotebook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs through the production sqlite dialect so the second pass re-reads the
// DDL the first pass wrote.
func TestRun_AutoMigratesNonPostgres(t *testing.T) {
	conn, err := db.Open(db.Config{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "quotebook.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, Run(conn, "sqlite"))
	for _, table := range []string{"clients", "counters", "quotes", "invoices", "line_items", "payments", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	require.NoError(t, Run(conn, "sqlite"), "running twice is a no-op")
}

func TestRun_RequiresHandle(t *testing.T) {
	assert.Error(t, Run(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}

func TestSource_HasPairedMigrations(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	down, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, up)
	assert.Len(t, down, len(up))
}
