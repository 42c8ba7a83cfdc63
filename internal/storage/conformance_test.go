package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// runConformance ověří stejné chování na všech backendech.
// newStore musí vrátit prázdné úložiště.
func runConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("EnsureDeviceIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)
		assert.Equal(t, "D1", first.ID)
		assert.Equal(t, "New Device D1", first.Name)

		second, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

		devices, err := s.Devices(ctx)
		require.NoError(t, err)
		assert.Len(t, devices, 1)
	})

	t.Run("EnsureDeviceConcurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.EnsureDevice(ctx, "racer"); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		devices, err := s.Devices(ctx)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "racer", devices[0].ID)
	})

	t.Run("AppendLevelUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)

		stored, err := s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: t0, Height: 100, Level: 10})
		require.NoError(t, err)
		assert.Equal(t, 10.0, stored.Level)
		assert.False(t, stored.Baseline)
		assert.True(t, stored.Timestamp.Equal(t0))

		// stejný klíč: přepíše hodnoty, nevytvoří druhý řádek
		stored, err = s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: t0, Height: 90.5, Level: 12.25})
		require.NoError(t, err)
		assert.Equal(t, 90.5, stored.Height)
		assert.Equal(t, 12.25, stored.Level)

		var rows []telemetry.LevelReading
		require.NoError(t, s.ScanLevels(ctx, func(r telemetry.LevelReading) error {
			rows = append(rows, r)
			return nil
		}))
		require.Len(t, rows, 1)
		assert.Equal(t, 90.5, rows[0].Height)
		assert.Equal(t, 12.25, rows[0].Level)
	})

	t.Run("AppendLevelKeepsBaseline", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)

		_, err = s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: t0, Height: 1, Level: 50})
		require.NoError(t, err)
		_, err = s.UpdateLevelBaseline(ctx, "D1", t0, true)
		require.NoError(t, err)

		stored, err := s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: t0, Height: 2, Level: 51})
		require.NoError(t, err)
		assert.True(t, stored.Baseline)
		assert.Equal(t, 51.0, stored.Level)
	})

	t.Run("AppendRequiresDevice", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "ghost", Timestamp: t0, Level: 1})
		require.Error(t, err)
		var pe *PersistenceError
		assert.ErrorAs(t, err, &pe)

		_, err = s.AppendTemperature(ctx, telemetry.TemperatureReading{DeviceID: "ghost", Timestamp: t0, Value: 1})
		require.Error(t, err)
	})

	t.Run("AppendTemperatureUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)

		_, err = s.AppendTemperature(ctx, telemetry.TemperatureReading{DeviceID: "D1", Timestamp: t0, Value: 20})
		require.NoError(t, err)
		stored, err := s.AppendTemperature(ctx, telemetry.TemperatureReading{DeviceID: "D1", Timestamp: t0, Value: 21.75})
		require.NoError(t, err)
		assert.Equal(t, 21.75, stored.Value)

		var rows []telemetry.TemperatureReading
		require.NoError(t, s.ScanTemperatures(ctx, func(r telemetry.TemperatureReading) error {
			rows = append(rows, r)
			return nil
		}))
		require.Len(t, rows, 1)
		assert.Equal(t, 21.75, rows[0].Value)
	})

	t.Run("UpdateBaseline", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)
		_, err = s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: t0, Height: 1, Level: 5})
		require.NoError(t, err)

		updated, err := s.UpdateLevelBaseline(ctx, "D1", t0, true)
		require.NoError(t, err)
		assert.True(t, updated.Baseline)

		// příznak se nevrací zpět
		updated, err = s.UpdateLevelBaseline(ctx, "D1", t0, false)
		require.NoError(t, err)
		assert.True(t, updated.Baseline)

		_, err = s.UpdateLevelBaseline(ctx, "D1", t0.Add(time.Second), true)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.UpdateLevelBaseline(ctx, "nobody", t0, true)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PriorQualifyingLevel", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"D1", "D2"} {
			_, err := s.EnsureDevice(ctx, id)
			require.NoError(t, err)
		}

		_, found, err := s.PriorQualifyingLevel(ctx, "D1", t0.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, found)

		readings := []telemetry.LevelReading{
			{DeviceID: "D1", Timestamp: t0, Level: 10},
			{DeviceID: "D1", Timestamp: t0.Add(1 * time.Minute), Level: 20},
			{DeviceID: "D1", Timestamp: t0.Add(2 * time.Minute), Level: 0},  // nekvalifikuje se
			{DeviceID: "D1", Timestamp: t0.Add(3 * time.Minute), Level: -4}, // nekvalifikuje se
			{DeviceID: "D2", Timestamp: t0.Add(150 * time.Second), Level: 99},
			{DeviceID: "D1", Timestamp: t0.Add(4 * time.Minute), Level: 30},
		}
		for _, r := range readings {
			_, err := s.AppendLevel(ctx, r)
			require.NoError(t, err)
		}

		prev, found, err := s.PriorQualifyingLevel(ctx, "D1", t0.Add(4*time.Minute))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 20.0, prev.Level)
		assert.True(t, prev.Timestamp.Equal(t0.Add(time.Minute)))

		// hranice je ostrá
		prev, found, err = s.PriorQualifyingLevel(ctx, "D1", t0.Add(time.Minute))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 10.0, prev.Level)

		_, found, err = s.PriorQualifyingLevel(ctx, "D1", t0)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("ScanAscendingAndDeleteBefore", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"A", "B"} {
			_, err := s.EnsureDevice(ctx, id)
			require.NoError(t, err)
		}
		for i, id := range []string{"B", "A", "B", "A"} {
			ts := t0.Add(time.Duration(3-i) * time.Hour)
			_, err := s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: id, Timestamp: ts, Level: float64(i)})
			require.NoError(t, err)
			_, err = s.AppendTemperature(ctx, telemetry.TemperatureReading{DeviceID: id, Timestamp: ts, Value: float64(i)})
			require.NoError(t, err)
		}

		var times []time.Time
		require.NoError(t, s.ScanLevels(ctx, func(r telemetry.LevelReading) error {
			times = append(times, r.Timestamp)
			return nil
		}))
		require.Len(t, times, 4)
		for i := 1; i < len(times); i++ {
			assert.True(t, times[i-1].Before(times[i]), "levels not ascending at %d", i)
		}

		n, err := s.DeleteLevelsBefore(ctx, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		n, err = s.DeleteTemperaturesBefore(ctx, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		var left []telemetry.TemperatureReading
		require.NoError(t, s.ScanTemperatures(ctx, func(r telemetry.TemperatureReading) error {
			left = append(left, r)
			return nil
		}))
		require.Len(t, left, 2)
		assert.True(t, left[0].Timestamp.Equal(t0.Add(2*time.Hour)))

		// zařízení mazání nepostihuje
		devices, err := s.Devices(ctx)
		require.NoError(t, err)
		assert.Len(t, devices, 2)
	})

	t.Run("ScanStopsOnCallbackError", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.EnsureDevice(ctx, "D1")
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: t0.Add(time.Duration(i) * time.Minute), Level: 1})
			require.NoError(t, err)
		}

		stop := fmt.Errorf("stop")
		calls := 0
		err = s.ScanLevels(ctx, func(telemetry.LevelReading) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("RecentJoinedWithDevice", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"A", "B"} {
			_, err := s.EnsureDevice(ctx, id)
			require.NoError(t, err)
		}
		for i := 0; i < 5; i++ {
			id := []string{"A", "B"}[i%2]
			ts := t0.Add(time.Duration(i) * time.Minute)
			_, err := s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: id, Timestamp: ts, Level: float64(i)})
			require.NoError(t, err)
			_, err = s.AppendTemperature(ctx, telemetry.TemperatureReading{DeviceID: id, Timestamp: ts, Value: float64(i)})
			require.NoError(t, err)
		}

		levels, err := s.RecentLevels(ctx, 3)
		require.NoError(t, err)
		require.Len(t, levels, 3)
		assert.Equal(t, 4.0, levels[0].Level)
		assert.Equal(t, 3.0, levels[1].Level)
		assert.Equal(t, 2.0, levels[2].Level)
		assert.Equal(t, "A", levels[0].Device.ID)
		assert.Equal(t, "New Device A", levels[0].Device.Name)
		assert.Equal(t, "New Device B", levels[1].Device.Name)

		all, err := s.RecentLevels(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		temps, err := s.RecentTemperatures(ctx, 2)
		require.NoError(t, err)
		require.Len(t, temps, 2)
		assert.Equal(t, 4.0, temps[0].Value)
		assert.Equal(t, "New Device A", temps[0].Device.Name)
	})
}

func TestMemoryStore(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mongo"})
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
