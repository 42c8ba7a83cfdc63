//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tfg",
			"POSTGRES_PASSWORD": "tfg",
			"POSTGRES_DB":       "telemetry",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://tfg:tfg@%s:%s/telemetry?sslmode=disable", host, port.Port())
	return container, url
}

func TestIntegration_PostgresStore(t *testing.T) {
	ctx := context.Background()
	container, url := startPostgresContainer(t, ctx)
	defer container.Terminate(ctx)

	runConformance(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(ctx, url)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE level_logs, temperature_logs, devices`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
