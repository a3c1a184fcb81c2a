package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/music-school-hub/student-registry/internal/bootstrap"
	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/redis"
)

// NotificationSource yields notifications published by other processes.
type NotificationSource interface {
	Next(ctx context.Context) (notification.Notification, error)
	Close() error
}

// WatcherOpener subscribes to the notification channel.
type WatcherOpener func(ctx context.Context, opts *RootOptions) (NotificationSource, error)

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print registry notifications published to Redis",
		Long: `Print notifications raised by the API server and other studentctl
invocations as they happen. Requires REDIS_ENABLED=true.

With --format json each notification is written as one JSON line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			open := opts.OpenWatcher
			if open == nil {
				open = defaultWatcher
			}

			ctx := cmd.Context()
			src, err := open(ctx, opts)
			if err != nil {
				return err
			}
			defer src.Close()

			out := opts.formatter(cmd)
			out.VerboseLog("subscribed to %s", redis.NotificationChannel)

			enc := json.NewEncoder(out.Writer)
			for seen := 0; count <= 0 || seen < count; seen++ {
				n, err := src.Next(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return WrapExitError(ExitFailure, "receive notification", err)
				}

				if out.Format == "json" {
					if err := enc.Encode(n); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out.Writer, "%s %-14s %s: %s\n",
					n.CreatedAt.Local().Format("15:04:05"), n.Kind, n.Title, n.Description)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many notifications (0 = until interrupted)")

	return cmd
}

type cacheStream struct {
	*redis.NotificationStream
	cache *redis.Cache
}

func (s cacheStream) Close() error {
	return multierr.Append(s.NotificationStream.Close(), s.cache.Close())
}

func defaultWatcher(ctx context.Context, opts *RootOptions) (NotificationSource, error) {
	cfg, log, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled {
		return nil, NewExitError(ExitCommandError, "watch requires REDIS_ENABLED=true")
	}

	cache, err := bootstrap.OpenCache(ctx, cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "connect to redis", err)
	}

	stream, err := cache.SubscribeNotifications(ctx)
	if err != nil {
		_ = cache.Close()
		return nil, WrapExitError(ExitFailure, "subscribe", err)
	}
	return cacheStream{NotificationStream: stream, cache: cache}, nil
}
