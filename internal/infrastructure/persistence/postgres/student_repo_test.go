package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/internal/testutil/containers"
)

func newTestStore(t *testing.T) (*StudentStore, *Connection) {
	t.Helper()
	containers.SkipUnlessIntegration(t)

	pg := containers.StartPostgres(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.URL = pg.DSN()
	conn, err := NewConnection(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	applied, err := NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, len(GetMigrations()), applied)

	return NewStudentStore(conn), conn
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "db.local"
	cfg.Password = "secret"
	assert.Equal(t,
		"host=db.local port=5432 dbname=postgres user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN(),
	)

	cfg.URL = "postgres://u:p@h:1/d"
	assert.Equal(t, "postgres://u:p@h:1/d", cfg.DSN())

	poolCfg, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(10), poolCfg.MaxConns)
}

func TestStudentStore_CRUD(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, err := store.Insert(ctx, student.Draft{Name: "Alice", Email: "a@x.com", Instrument: "Piano", SkillLevel: student.SkillBeginner})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)
	assert.False(t, alice.RegisteredAt.IsZero())

	bob, err := store.Insert(ctx, student.Draft{Name: "Bob", Email: "b@x.com", Instrument: "Guitar", SkillLevel: student.SkillIntermediate})
	require.NoError(t, err)

	list, err := store.List(ctx, student.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, bob.ID, list[0].ID, "newest first")

	updated, err := store.Update(ctx, alice.ID, student.Patch{Instrument: student.StringPtr("Cello")})
	require.NoError(t, err)
	assert.Equal(t, "Cello", updated.Instrument)
	assert.Equal(t, "Alice", updated.Name)
	assert.True(t, alice.RegisteredAt.Equal(updated.RegisteredAt))

	require.NoError(t, store.Delete(ctx, bob.ID))
	list, err = store.List(ctx, student.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice.ID, list[0].ID)
}

func TestStudentStore_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Delete(ctx, "00000000-0000-0000-0000-000000000000"), student.ErrStudentNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "not-a-uuid"), student.ErrStudentNotFound)

	_, err := store.Update(ctx, "00000000-0000-0000-0000-000000000000", student.Patch{Name: student.StringPtr("x")})
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	_, err = store.Update(ctx, "00000000-0000-0000-0000-000000000000", student.Patch{})
	assert.ErrorIs(t, err, student.ErrEmptyPatch)
}

func TestStudentStore_ConstraintViolation(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Insert(context.Background(), student.Draft{Name: " ", Email: "e", Instrument: "i", SkillLevel: student.SkillAdvanced})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestMigrator_RollbackAndStatus(t *testing.T) {
	_, conn := newTestStore(t)
	ctx := context.Background()
	m := NewMigrator(conn)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	for _, mig := range status {
		assert.True(t, mig.IsApplied, "migration %d", mig.Version)
	}

	require.NoError(t, m.Rollback(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status[len(status)-1].IsApplied)

	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	health, err := conn.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.NoError(t, conn.CheckPool(ctx))
}

func TestConnection_CheckPoolClosed(t *testing.T) {
	conn := &Connection{closed: true}
	assert.ErrorIs(t, conn.CheckPool(context.Background()), ErrConnectionClosed)
}
