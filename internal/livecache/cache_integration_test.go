//go:build integration

package livecache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

func startValkey(t *testing.T, ctx context.Context) string {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestIntegration_Cache(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, startValkey(t, ctx), "", time.Hour)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Latest(ctx, "D1")
	require.ErrorIs(t, err, ErrNotCached)

	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, c.MirrorLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: at, Level: 40}))
	// starší měření novější nepřepíše
	require.NoError(t, c.MirrorLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: at.Add(-time.Minute), Level: 10}))
	require.NoError(t, c.MirrorTemperature(ctx, telemetry.TemperatureReading{DeviceID: "D1", Timestamp: at, Value: 19}))

	snap, err := c.Latest(ctx, "D1")
	require.NoError(t, err)
	require.NotNil(t, snap.Level)
	assert.Equal(t, 40.0, snap.Level.Level)
	require.NotNil(t, snap.Temperature)
	assert.Equal(t, 19.0, snap.Temperature.Value)

	ttl, err := c.rdb.TTL(ctx, Key(kindLevel, "D1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}
