package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/config"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory

	b, err := OpenStore(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Breaker)
	require.NotNil(t, b.Pinger())
	assert.NoError(t, b.Pinger().Ping(context.Background()))
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "students.db")

	b, err := OpenStore(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = b.Store.Insert(ctx, student.Draft{
		Name: "Alice", Email: "alice@example.com", Instrument: "Piano", SkillLevel: student.SkillBeginner,
	})
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close(), "second close is a no-op")
}

func TestOpenStore_Supabase(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverSupabase
	cfg.Supabase.URL = "https://example.supabase.co"
	cfg.Supabase.AnonKey = "anon"

	b, err := OpenStore(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, b.Breaker)
	assert.NoError(t, b.Close())
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mongo"

	_, err := OpenStore(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, "mongo")
}
