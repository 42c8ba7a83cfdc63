package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// MemoryStore drží vše v mapách pod jedním zámkem.
// Hodí se pro testy a pro běh bez databáze; po restartu je prázdný.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	devices map[string]telemetry.Device
	// měření podle zařízení a času (UnixNano)
	levels map[string]map[int64]telemetry.LevelReading
	temps  map[string]map[int64]telemetry.TemperatureReading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		devices: make(map[string]telemetry.Device),
		levels:  make(map[string]map[int64]telemetry.LevelReading),
		temps:   make(map[string]map[int64]telemetry.TemperatureReading),
	}
}

func (s *MemoryStore) EnsureDevice(ctx context.Context, id string) (telemetry.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.devices[id]; ok {
		return d, nil
	}
	d := telemetry.Device{
		ID:        id,
		Name:      telemetry.DefaultDeviceName(id),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	s.devices[id] = d
	return d, nil
}

func (s *MemoryStore) AppendLevel(ctx context.Context, r telemetry.LevelReading) (telemetry.LevelReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[r.DeviceID]; !ok {
		return telemetry.LevelReading{}, persistErr("append level", r.DeviceID, ErrUnknownDevice)
	}

	r.Timestamp = r.Timestamp.UTC()
	rows := s.levels[r.DeviceID]
	if rows == nil {
		rows = make(map[int64]telemetry.LevelReading)
		s.levels[r.DeviceID] = rows
	}

	key := r.Timestamp.UnixNano()
	if existing, ok := rows[key]; ok {
		r.Baseline = existing.Baseline
	} else {
		r.Baseline = false
	}
	rows[key] = r
	return r, nil
}

func (s *MemoryStore) UpdateLevelBaseline(ctx context.Context, deviceID string, ts time.Time, flag bool) (telemetry.LevelReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ts.UTC().UnixNano()
	r, ok := s.levels[deviceID][key]
	if !ok {
		return telemetry.LevelReading{}, ErrNotFound
	}
	r.Baseline = r.Baseline || flag
	s.levels[deviceID][key] = r
	return r, nil
}

func (s *MemoryStore) PriorQualifyingLevel(ctx context.Context, deviceID string, before time.Time) (telemetry.LevelReading, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  telemetry.LevelReading
		found bool
	)
	for _, r := range s.levels[deviceID] {
		if !r.Timestamp.Before(before) || !r.Qualifying() {
			continue
		}
		if !found || r.Timestamp.After(best.Timestamp) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) AppendTemperature(ctx context.Context, r telemetry.TemperatureReading) (telemetry.TemperatureReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[r.DeviceID]; !ok {
		return telemetry.TemperatureReading{}, persistErr("append temperature", r.DeviceID, ErrUnknownDevice)
	}

	r.Timestamp = r.Timestamp.UTC()
	rows := s.temps[r.DeviceID]
	if rows == nil {
		rows = make(map[int64]telemetry.TemperatureReading)
		s.temps[r.DeviceID] = rows
	}
	rows[r.Timestamp.UnixNano()] = r
	return r, nil
}

// levelSnapshot vrací kopii všech měření hladiny seřazenou vzestupně podle času.
func (s *MemoryStore) levelSnapshot() []telemetry.LevelReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]telemetry.LevelReading, 0)
	for _, rows := range s.levels {
		for _, r := range rows {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (s *MemoryStore) temperatureSnapshot() []telemetry.TemperatureReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]telemetry.TemperatureReading, 0)
	for _, rows := range s.temps {
		for _, r := range rows {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (s *MemoryStore) ScanLevels(ctx context.Context, fn func(telemetry.LevelReading) error) error {
	for _, r := range s.levelSnapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) ScanTemperatures(ctx context.Context, fn func(telemetry.TemperatureReading) error) error {
	for _, r := range s.temperatureSnapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) DeleteLevelsBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, rows := range s.levels {
		for key, r := range rows {
			if r.Timestamp.Before(t) {
				delete(rows, key)
				n++
			}
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteTemperaturesBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, rows := range s.temps {
		for key, r := range rows {
			if r.Timestamp.Before(t) {
				delete(rows, key)
				n++
			}
		}
	}
	return n, nil
}

func (s *MemoryStore) Devices(ctx context.Context) ([]telemetry.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]telemetry.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) RecentLevels(ctx context.Context, limit int) ([]LevelView, error) {
	rows := s.levelSnapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LevelView, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, LevelView{LevelReading: rows[i], Device: s.devices[rows[i].DeviceID]})
	}
	return out, nil
}

func (s *MemoryStore) RecentTemperatures(ctx context.Context, limit int) ([]TemperatureView, error) {
	rows := s.temperatureSnapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TemperatureView, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, TemperatureView{TemperatureReading: rows[i], Device: s.devices[rows[i].DeviceID]})
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
