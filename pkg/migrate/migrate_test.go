package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101000000_create_crews.sql": {Data: []byte(
			"-- +goose Up\nCREATE TABLE crews (id INTEGER PRIMARY KEY);\n-- +goose Down\nDROP TABLE crews;\n")},
		"20260102000000_create_tractors.sql": {Data: []byte(
			"-- +goose Up\nCREATE TABLE tractors (id INTEGER PRIMARY KEY);\n-- +goose Down\nDROP TABLE tractors;\n")},
	}
}

func newSQLiteMigrator(t *testing.T) *Migrator {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := newMigrator(goose.DialectSQLite3, sqlDB, testMigrations())
	require.NoError(t, err)
	return m
}

func TestMigratorUpDownAndTo(t *testing.T) {
	ctx := context.Background()
	m := newSQLiteMigrator(t)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	require.Equal(t, int64(20260101000000), applied[0].Version)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(20260102000000), version)

	applied, err = m.Down(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, int64(20260102000000), applied[0].Version)

	applied, err = m.To(ctx, "20260102000000")
	require.NoError(t, err)
	require.Len(t, applied, 1)

	applied, err = m.To(ctx, "20260102000000")
	require.NoError(t, err)
	require.Empty(t, applied)

	applied, err = m.To(ctx, "20260101000000")
	require.NoError(t, err)
	require.Len(t, applied, 1)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, goose.StateApplied, statuses[0].State)
	require.Equal(t, goose.StatePending, statuses[1].State)
}

func TestMigratorRedo(t *testing.T) {
	ctx := context.Background()
	m := newSQLiteMigrator(t)
	_, err := m.Up(ctx)
	require.NoError(t, err)

	applied, err := m.Redo(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	require.Equal(t, applied[0].Version, applied[1].Version)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(20260102000000), version)
}

func TestMigratorToRejectsBadVersion(t *testing.T) {
	m := newSQLiteMigrator(t)
	_, err := m.To(context.Background(), "latest")
	require.Error(t, err)
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil, testMigrations())
	require.Error(t, err)
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateFS(Embedded()))
}
