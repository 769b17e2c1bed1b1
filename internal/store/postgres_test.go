package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hive/internal/wire"
	"github.com/mesh-intelligence/hive/pkg/types"
)

// postgresAttached connects to $HIVE_TEST_POSTGRES_DSN, skipping when unset.
func postgresAttached(t *testing.T) *Backend {
	t.Helper()
	dsn := os.Getenv("HIVE_TEST_POSTGRES_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("HIVE_TEST_POSTGRES_DSN not set")
	}
	cfg := types.Default()
	cfg.Database = types.DatabaseConfig{Driver: types.DriverPostgres, DSN: dsn}

	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(context.Background(), cfg))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func TestPostgresObjectLifecycle(t *testing.T) {
	b := postgresAttached(t)
	assert.Equal(t, types.DriverPostgres, b.Driver())
	s := NewObjectSource(b, zerolog.Nop())
	ctx := context.Background()
	instance := int(time.Now().UnixNano() % 1_000_000)
	t.Cleanup(func() {
		if db, err := b.DB(); err == nil {
			_, _ = db.Exec("DELETE FROM object_data WHERE instance = $1", instance)
		}
	})

	require.NoError(t, s.Create(ctx, instance, hilux()))
	id, err := s.FetchID(ctx, instance, 90210)
	require.NoError(t, err)

	ws := wire.List{wire.Int32(180), wire.List{wire.Int32(1), wire.Int32(2), wire.Int32(3)}}
	require.NoError(t, s.UpdateMovement(ctx, instance, id, ws, 0.25))

	rows := objectRows(t, s, instance)
	require.Len(t, rows, 1)
	assert.Equal(t, ws, rows[0][4])
	assert.Equal(t, wire.Double(0.25), rows[0][7])

	custom := NewCustomSource(b, zerolog.Nop())
	ok, err := custom.Execute(ctx, "UPDATE object_data SET classname = ? WHERE instance = ? AND object_uid = ?",
		wire.List{wire.String("Patched"), wire.Integer(int64(instance)), wire.Integer(90210)})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := collect(t, custom, "SELECT classname FROM object_data WHERE instance = ?", wire.List{wire.Integer(int64(instance))})
	require.NoError(t, err)
	assert.Equal(t, []wire.List{{wire.String("Patched")}}, got)

	require.NoError(t, s.Delete(ctx, instance, 90210, true))
	_, err = s.FetchID(ctx, instance, 90210)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
