// Package containers starts throwaway PostgreSQL and Redis containers for
// integration tests. Tests using it are skipped under -short and when
// STUDENT_REGISTRY_INTEGRATION is not set.
package containers

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultPostgresPort = "5432"
	defaultRedisPort    = "6379"
	defaultUser         = "test"
	defaultPassword     = "test"
	defaultDatabase     = "registry"

	// startupTimeout bounds container startup.
	startupTimeout = 60 * time.Second

	// EnvIntegration enables container-backed tests.
	EnvIntegration = "STUDENT_REGISTRY_INTEGRATION"
)

// SkipUnlessIntegration skips the test unless integration tests are enabled.
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv(EnvIntegration) == "" {
		t.Skipf("Skipping integration test: set %s=1 to run", EnvIntegration)
	}
}

// Postgres is a running PostgreSQL container.
type Postgres struct {
	testcontainers.Container
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN returns the PostgreSQL connection string.
func (c *Postgres) DSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// StartPostgres starts a PostgreSQL container and registers its termination
// with t.Cleanup.
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{defaultPostgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     defaultUser,
			"POSTGRES_PASSWORD": defaultPassword,
			"POSTGRES_DB":       defaultDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForExposedPort(),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate postgres container: %v", err)
		}
	})

	host, port := endpoint(ctx, t, container, defaultPostgresPort)

	return &Postgres{
		Container: container,
		Host:      host,
		Port:      port,
		User:      defaultUser,
		Password:  defaultPassword,
		Database:  defaultDatabase,
	}
}

// Redis is a running Redis container.
type Redis struct {
	testcontainers.Container
	Host string
	Port int
}

// Addr returns the address in host:port form.
func (c *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StartRedis starts a Redis container and registers its termination with
// t.Cleanup.
func StartRedis(t *testing.T) *Redis {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{defaultRedisPort + "/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate redis container: %v", err)
		}
	})

	host, port := endpoint(ctx, t, container, defaultRedisPort)
	return &Redis{Container: container, Host: host, Port: port}
}

func endpoint(ctx context.Context, t *testing.T, c testcontainers.Container, port string) (string, int) {
	t.Helper()

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	p, err := strconv.Atoi(mapped.Port())
	if err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}
	return host, p
}
