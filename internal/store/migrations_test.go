package store

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_add_tags.sql": {Data: []byte("ALTER TABLE flows ADD COLUMN tags TEXT;")},
		"migrations/001_initial.sql":  {Data: []byte("-- header\nCREATE TABLE a (x INT);\nCREATE TABLE b (y INT);\n")},
		"migrations/README.txt":       {Data: []byte("ignored")},
	}
	ms, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].version)
	assert.Equal(t, "initial", ms[0].name)
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, ms[0].stmts)
	assert.Equal(t, "add_tags", ms[1].name)
}

func TestLoadMigrations_BadNames(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"migrations/initial.sql": {Data: []byte("SELECT 1;")}})
	require.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{"migrations/x_initial.sql": {Data: []byte("SELECT 1;")}})
	require.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	require.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM jobflow_migrations`).Scan(&n))
	assert.Equal(t, 1, n)

	require.NoError(t, s.Vacuum(context.Background()))
}
