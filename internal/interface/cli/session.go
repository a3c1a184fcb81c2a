package cli

import (
	"context"

	"go.uber.org/multierr"

	"github.com/music-school-hub/student-registry/config"
	"github.com/music-school-hub/student-registry/internal/application/registry"
	"github.com/music-school-hub/student-registry/internal/bootstrap"
	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/internal/infrastructure/messaging"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/redis"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

// SessionOpener opens a loaded registry for one command.
type SessionOpener func(ctx context.Context, opts *RootOptions) (*Session, error)

// Session is a registry loaded from the store plus the notifications it
// raised while the command ran.
type Session struct {
	Registry *registry.Registry

	bus     *messaging.Bus
	feed    *messaging.Feed
	release func() error
}

// NewSession wires a registry over store and performs the initial load.
// release, if not nil, runs on Close. Extra handlers receive every
// notification after the session's own feed.
func NewSession(ctx context.Context, store student.Store, log *logger.Logger, release func() error, extra ...messaging.Handler) (*Session, error) {
	if log == nil {
		log = logger.Nop()
	}

	bus := messaging.NewBus(messaging.BusConfig{Logger: log})
	feed := messaging.NewFeed(0)
	handlers := append([]messaging.Handler{feed.Handler(), messaging.LogHandler(log)}, extra...)
	for _, h := range handlers {
		if err := bus.SubscribeAll(h); err != nil {
			return nil, err
		}
	}

	s := &Session{
		Registry: registry.New(store, bus, registry.WithLogger(log)),
		bus:      bus,
		feed:     feed,
		release:  release,
	}
	s.Registry.Load(ctx)
	return s, nil
}

// Notifier is the bus presenters report to.
func (s *Session) Notifier() *messaging.Bus {
	return s.bus
}

// Notifications returns everything raised so far, oldest first.
func (s *Session) Notifications() []notification.Notification {
	return s.feed.Since(0)
}

// LoadFailed reports whether the initial load raised FetchFailed.
func (s *Session) LoadFailed() bool {
	for _, n := range s.Notifications() {
		if n.Kind == notification.KindFetchFailed {
			return true
		}
	}
	return false
}

// Close shuts down the bus and releases the store.
func (s *Session) Close() error {
	err := s.bus.Close()
	if s.release != nil {
		err = multierr.Append(err, s.release())
	}
	return err
}

func (o *RootOptions) loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	} else if cfg.Log.Level == "info" || cfg.Log.Level == "debug" {
		cfg.Log.Level = "warn"
	}
	return cfg, bootstrap.NewLogger(cfg.Log), nil
}

func (o *RootOptions) openSession(ctx context.Context) (*Session, error) {
	if o.OpenSession != nil {
		return o.OpenSession(ctx, o)
	}

	cfg, log, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	backend, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}

	release := backend.Close
	var extra []messaging.Handler

	// Actions taken from the CLI show up in "studentctl watch" and in
	// every other subscriber of the channel.
	if cfg.Redis.Enabled {
		cache, err := bootstrap.OpenCache(ctx, cfg, log)
		if err != nil {
			log.Warn("redis unavailable, notifications stay local", logger.Err(err))
		} else {
			extra = append(extra, messaging.PublishHandler(cache, redis.NotificationChannel))
			release = func() error { return multierr.Append(cache.Close(), backend.Close()) }
		}
	}

	session, err := NewSession(ctx, backend.Store, log, release, extra...)
	if err != nil {
		_ = release()
		return nil, err
	}
	return session, nil
}
