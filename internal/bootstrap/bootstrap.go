// Package bootstrap opens the backing services selected by configuration.
// It is shared by the API server and the studentctl CLI.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/music-school-hub/student-registry/config"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/internal/infrastructure/external/supabase"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/memory"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/postgres"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/redis"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/sqlite"
	"github.com/music-school-hub/student-registry/pkg/circuitbreaker"
	"github.com/music-school-hub/student-registry/pkg/logger"
	"github.com/music-school-hub/student-registry/pkg/retry"
)

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Level)
	opts.Format = cfg.Format
	return logger.New(opts)
}

// Backend is an opened student store plus whatever must be closed with it.
type Backend struct {
	Store  student.Store
	Driver string

	// Breaker is set for the supabase driver only.
	Breaker *circuitbreaker.CircuitBreaker

	// Postgres is set for the postgres driver only.
	Postgres *postgres.Connection

	closers []func() error
}

// Pinger is satisfied by every store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pinger returns the store's connectivity check.
func (b *Backend) Pinger() Pinger {
	if p, ok := b.Store.(Pinger); ok {
		return p
	}
	return nil
}

// Close releases the store's resources.
func (b *Backend) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}

// OpenStore opens the store named by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	b := &Backend{Driver: cfg.Store.Driver}
	log = log.With(logger.StoreDriver(cfg.Store.Driver))

	switch cfg.Store.Driver {
	case config.DriverSupabase:
		scfg := supabase.DefaultConfig(cfg.Supabase.URL, cfg.Supabase.AnonKey)
		scfg.Table = cfg.Supabase.Table
		scfg.Timeout = cfg.Supabase.Timeout
		scfg.RequestsPerSecond = cfg.Supabase.RequestsPerSecond
		scfg.Burst = cfg.Supabase.Burst

		client, err := supabase.NewClient(scfg, supabase.WithLogger(log.With(logger.Component("supabase"))))
		if err != nil {
			return nil, err
		}
		b.Store = client
		b.Breaker = client.Breaker()

	case config.DriverPostgres:
		conn, err := OpenPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		b.Postgres = conn
		b.closers = append(b.closers, func() error { conn.Close(); return nil })

		if cfg.Postgres.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("database schema is up to date", logger.Int("applied", applied))
		}
		b.Store = postgres.NewStudentStore(conn)

	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.Store = st
		b.closers = append(b.closers, st.Close)

	case config.DriverMemory:
		b.Store = memory.NewStudentStore()

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	log.Info("student store opened")
	return b, nil
}

// OpenPostgres connects to PostgreSQL, retrying while the database starts.
func OpenPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	pcfg := postgres.DefaultConfig()
	pcfg.URL = cfg.Postgres.URL
	pcfg.Host = cfg.Postgres.Host
	pcfg.Port = cfg.Postgres.Port
	pcfg.Database = cfg.Postgres.Database
	pcfg.User = cfg.Postgres.User
	pcfg.Password = cfg.Postgres.Password
	pcfg.SSLMode = cfg.Postgres.SSLMode
	if cfg.Postgres.MaxConns > 0 {
		pcfg.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		pcfg.MinConns = cfg.Postgres.MinConns
	}

	return connect(ctx, log, "postgres", func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pcfg)
	})
}

// OpenCache connects to Redis, retrying while it starts.
func OpenCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	rcfg := redis.DefaultConfig()
	rcfg.Host = cfg.Redis.Host
	rcfg.Port = cfg.Redis.Port
	rcfg.Password = cfg.Redis.Password
	rcfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rcfg.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout > 0 {
		rcfg.DialTimeout = cfg.Redis.DialTimeout
	}

	return connect(ctx, log, "redis", func(context.Context) (*redis.Cache, error) {
		return redis.NewCache(rcfg)
	})
}

// connect retries open with the startup policy, logging each retry.
func connect[T any](ctx context.Context, log *logger.Logger, service string, open func(context.Context) (T, error)) (T, error) {
	var result T
	retrier := retry.StartupRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("backing service not ready, retrying",
			logger.String("service", service),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = open(ctx)
		return err
	})
	return result, err
}
