package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hive/pkg/types"
)

func sqliteConfig(dir string) types.Config {
	cfg := types.Default()
	cfg.DataDir = dir
	return cfg
}

// attached returns a backend on a fresh sqlite database that is detached when
// the test ends.
func attached(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(context.Background(), sqliteConfig(t.TempDir())))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func TestBackendAttach(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b := NewBackend(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, b.Attach(ctx, sqliteConfig(dir)))
	_, err := os.Stat(filepath.Join(dir, DefaultDBFile))
	require.NoError(t, err, "database file not created")
	assert.Equal(t, types.DriverSQLite, b.Driver())

	assert.ErrorIs(t, b.Attach(ctx, sqliteConfig(dir)), types.ErrAlreadyAttached)
	require.NoError(t, b.Detach())
}

func TestBackendAttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend(zerolog.Nop())
	cfg := sqliteConfig(t.TempDir())
	cfg.Database.Driver = "oracle"

	assert.ErrorIs(t, b.Attach(context.Background(), cfg), types.ErrDriverUnknown)
	_, err := b.DB()
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackendDetach(t *testing.T) {
	b := NewBackend(zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, b.Attach(ctx, sqliteConfig(t.TempDir())))

	_, err := b.Prepare(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.cachedStatements())

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")
	assert.Zero(t, b.cachedStatements())

	_, err = b.DB()
	assert.ErrorIs(t, err, types.ErrDetached)
	_, err = b.Prepare(ctx, "SELECT 1")
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackendReattachKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(ctx, sqliteConfig(dir)))
	require.NoError(t, NewObjectSource(b, zerolog.Nop()).Create(ctx, 1, Object{UID: 5, Classname: "Tent"}))
	require.NoError(t, b.Detach())

	require.NoError(t, b.Attach(ctx, sqliteConfig(dir)))
	defer b.Detach()
	id, err := NewObjectSource(b, zerolog.Nop()).FetchID(ctx, 1, 5)
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestPrepareCachesPerQuery(t *testing.T) {
	b := attached(t)
	ctx := context.Background()

	s1, err := b.Prepare(ctx, "SELECT ?")
	require.NoError(t, err)
	s2, err := b.Prepare(ctx, "SELECT ?")
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	_, err = b.Prepare(ctx, "SELECT ?, ?")
	require.NoError(t, err)
	assert.Equal(t, 2, b.cachedStatements())
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver string
		query  string
		want   string
	}{
		{types.DriverSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{types.DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{types.DriverPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rebind(tt.driver, tt.query))
	}
}
