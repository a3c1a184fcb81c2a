package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoad_MemoryDriverFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("HTTP_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("HTTP_REQUEST_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 100, cfg.HTTP.FeedSize)
}

func TestLoad_SupabaseRequiresCredentials(t *testing.T) {
	t.Setenv("STORE_DRIVER", "supabase")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
}

func TestLoad_YAMLOverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: sqlite
sqlite:
  path: /var/lib/registry/students.db
redis:
  enabled: true
  port: 6380
http:
  request_timeout: 5s
log:
  level: debug
  format: console
`), 0o600))

	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/registry/students.db", cfg.SQLite.Path)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "localhost", cfg.Redis.Host, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "warn", cfg.Log.Level, "env wins over file")
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.App.Environment = "qa"
	cfg.Store.Driver = "mongo"
	cfg.HTTP.FeedSize = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

func TestValidate_DefaultsWithMemoryDriver(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = DriverMemory
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.IsProduction())
}

func TestValidate_MemoryDriverRejectedInProduction(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = DriverMemory
	cfg.App.Environment = EnvProduction

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")

	cfg.Store.Driver = DriverSQLite
	cfg.SQLite.Path = "students.db"
	assert.NoError(t, cfg.Validate())
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_FLOAT", "1.5")

	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
	assert.Equal(t, 1.5, getEnvFloat("X_FLOAT", 0))
}
