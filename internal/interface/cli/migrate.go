package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/music-school-hub/student-registry/config"
	"github.com/music-school-hub/student-registry/internal/bootstrap"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/postgres"
)

// Migrations is the part of postgres.Migrator the migrate command uses.
type Migrations interface {
	Migrate(ctx context.Context) (int, error)
	Rollback(ctx context.Context) error
	Status(ctx context.Context) ([]postgres.Migration, error)
}

// MigratorOpener opens the schema migrator and returns its release func.
type MigratorOpener func(ctx context.Context, opts *RootOptions) (Migrations, func(), error)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema (postgres driver only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m Migrations, out *OutputFormatter) error {
				applied, err := m.Migrate(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "apply migrations", err)
				}
				if out.Format == "json" {
					return out.Success(map[string]int{"applied": applied}, nil)
				}
				return out.Success(fmt.Sprintf("Applied %d migration(s)", applied), nil)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m Migrations, out *OutputFormatter) error {
				if err := m.Rollback(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "roll back migration", err)
				}
				if out.Format == "json" {
					return out.Success(map[string]bool{"rolled_back": true}, nil)
				}
				return out.Success("Rolled back the latest migration", nil)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m Migrations, out *OutputFormatter) error {
				migrations, err := m.Status(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "read migration status", err)
				}
				if out.Format == "json" {
					return out.Success(migrations, nil)
				}
				return out.Success(formatMigrations(migrations), nil)
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, opts *RootOptions, fn func(Migrations, *OutputFormatter) error) error {
	open := opts.OpenMigrator
	if open == nil {
		open = defaultMigrator
	}

	m, release, err := open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer release()

	return fn(m, opts.formatter(cmd))
}

func defaultMigrator(ctx context.Context, opts *RootOptions) (Migrations, func(), error) {
	cfg, log, err := opts.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return nil, nil, NewExitError(ExitCommandError,
			fmt.Sprintf("migrate requires STORE_DRIVER=%s, got %q", config.DriverPostgres, cfg.Store.Driver))
	}

	conn, err := bootstrap.OpenPostgres(ctx, cfg, log)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "connect to postgres", err)
	}
	return postgres.NewMigrator(conn), conn.Close, nil
}

func formatMigrations(migrations []postgres.Migration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-32s %s", "VERSION", "NAME", "APPLIED")
	for _, m := range migrations {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&b, "\n%-8d %-32s %s", m.Version, m.Name, applied)
	}
	return b.String()
}
