// Package main - точка входа API-сервера реестра студентов музыкальной школы.
//
// Сервер:
// - загружает список студентов из удалённого хранилища при старте
// - обслуживает REST API регистрации, редактирования и удаления
// - раздаёт уведомления через ленту и, при включённом Redis, через Pub/Sub
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/music-school-hub/student-registry/config"
	"github.com/music-school-hub/student-registry/internal/application/registry"
	"github.com/music-school-hub/student-registry/internal/bootstrap"
	"github.com/music-school-hub/student-registry/internal/infrastructure/messaging"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/redis"
	httpapi "github.com/music-school-hub/student-registry/internal/interface/http"
	"github.com/music-school-hub/student-registry/internal/interface/http/handlers"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $CONFIG_FILE)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) (err error) {
	started := time.Now()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg.Log).With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
	defer func() { _ = log.Sync() }()

	log.Info("starting student registry",
		logger.String("env", string(cfg.App.Environment)),
		logger.StoreDriver(cfg.Store.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ СТУДЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing store...")
		err = multierr.Append(err, backend.Close())
	}()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if p := backend.Pinger(); p != nil {
		health.AddCheck("store", handlers.NewPingCheck(p))
	}
	if backend.Breaker != nil {
		health.AddCheck("store_breaker", handlers.NewBreakerCheck(backend.Breaker))
	}
	if backend.Postgres != nil {
		health.AddCheck("postgres_pool", backend.Postgres.CheckPool)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА УВЕДОМЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultBusConfig()
	busConfig.Logger = log
	bus := messaging.NewBus(busConfig)
	defer func() {
		log.Info("closing notification bus...")
		err = multierr.Append(err, bus.Close())
	}()

	feed := messaging.NewFeed(cfg.HTTP.FeedSize)
	if err := multierr.Combine(
		bus.SubscribeAll(messaging.LogHandler(log)),
		bus.SubscribeAll(feed.Handler()),
	); err != nil {
		return fmt.Errorf("failed to subscribe notification handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (опционально, трансляция уведомлений)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Enabled {
		cache, err := bootstrap.OpenCache(ctx, cfg, log)
		if err != nil {
			log.Warn("failed to connect to Redis, notifications stay local", logger.Err(err))
		} else {
			defer cache.Close()
			if err := bus.SubscribeAll(messaging.PublishHandler(cache, redis.NotificationChannel)); err != nil {
				return fmt.Errorf("failed to subscribe redis publisher: %w", err)
			}
			health.AddCheck("redis", handlers.NewPingCheck(cache))
			log.Info("publishing notifications to redis", logger.String("channel", redis.NotificationChannel))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕЕСТР И НАЧАЛЬНАЯ ЗАГРУЗКА
	// ─────────────────────────────────────────────────────────────────────────
	reg := registry.New(backend.Store, bus, registry.WithLogger(log))
	reg.Load(ctx)
	log.Info("initial load finished", logger.CollectionSize(reg.Len()))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpapi.DefaultConfig()
	httpConfig.Addr = cfg.HTTP.Addr
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.CORSOrigins
	httpConfig.Version = cfg.App.Version

	server := httpapi.NewServer(httpConfig, httpapi.Dependencies{
		Registry:      reg,
		Notifier:      bus,
		Feed:          feed,
		HealthChecker: health,
		Logger:        log.With(logger.Component("http")),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...",
			logger.Duration("timeout", cfg.App.ShutdownTimeout),
			logger.Duration("served", server.Uptime()),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown completed", logger.Duration("uptime", time.Since(started)))
	return nil
}
