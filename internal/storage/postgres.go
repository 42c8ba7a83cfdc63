package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PostgresStore je hlavní backend (Postgres/TimescaleDB).
// Upserty jsou jeden příkaz INSERT ... ON CONFLICT, unikátnost hlídá primární klíč.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore vytvoří pool, ověří spojení a založí chybějící tabulky.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unavailable: %w", err)
	}
	// Bez argumentů jde Exec přes simple protocol, takže projde víc příkazů najednou.
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) EnsureDevice(ctx context.Context, id string) (telemetry.Device, error) {
	// DO UPDATE naprázdno místo DO NOTHING: RETURNING pak vrátí i už existující řádek.
	const query = `
		INSERT INTO devices (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, name, created_at`

	var d telemetry.Device
	err := s.pool.QueryRow(ctx, query, id, telemetry.DefaultDeviceName(id)).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err != nil {
		return telemetry.Device{}, persistErr("ensure device", id, err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

const levelColumns = `device_id, "timestamp", height, level, baseline`

func scanLevel(row pgx.Row) (telemetry.LevelReading, error) {
	var r telemetry.LevelReading
	if err := row.Scan(&r.DeviceID, &r.Timestamp, &r.Height, &r.Level, &r.Baseline); err != nil {
		return telemetry.LevelReading{}, err
	}
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}

func (s *PostgresStore) AppendLevel(ctx context.Context, r telemetry.LevelReading) (telemetry.LevelReading, error) {
	const query = `
		INSERT INTO level_logs (device_id, "timestamp", height, level) VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id, "timestamp") DO UPDATE SET height = EXCLUDED.height, level = EXCLUDED.level
		RETURNING ` + levelColumns

	stored, err := scanLevel(s.pool.QueryRow(ctx, query, r.DeviceID, r.Timestamp.UTC(), r.Height, r.Level))
	if err != nil {
		return telemetry.LevelReading{}, persistErr("append level", r.DeviceID, err)
	}
	return stored, nil
}

func (s *PostgresStore) UpdateLevelBaseline(ctx context.Context, deviceID string, ts time.Time, flag bool) (telemetry.LevelReading, error) {
	const query = `
		UPDATE level_logs SET baseline = baseline OR $3
		WHERE device_id = $1 AND "timestamp" = $2
		RETURNING ` + levelColumns

	stored, err := scanLevel(s.pool.QueryRow(ctx, query, deviceID, ts.UTC(), flag))
	if errors.Is(err, pgx.ErrNoRows) {
		return telemetry.LevelReading{}, ErrNotFound
	}
	if err != nil {
		return telemetry.LevelReading{}, persistErr("update baseline", deviceID, err)
	}
	return stored, nil
}

func (s *PostgresStore) PriorQualifyingLevel(ctx context.Context, deviceID string, before time.Time) (telemetry.LevelReading, bool, error) {
	const query = `
		SELECT ` + levelColumns + `
		FROM level_logs
		WHERE device_id = $1 AND "timestamp" < $2 AND level > 0
		ORDER BY "timestamp" DESC
		LIMIT 1`

	prev, err := scanLevel(s.pool.QueryRow(ctx, query, deviceID, before.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return telemetry.LevelReading{}, false, nil
	}
	if err != nil {
		return telemetry.LevelReading{}, false, persistErr("prior level", deviceID, err)
	}
	return prev, true, nil
}

func (s *PostgresStore) AppendTemperature(ctx context.Context, r telemetry.TemperatureReading) (telemetry.TemperatureReading, error) {
	const query = `
		INSERT INTO temperature_logs (device_id, "timestamp", value) VALUES ($1, $2, $3)
		ON CONFLICT (device_id, "timestamp") DO UPDATE SET value = EXCLUDED.value
		RETURNING device_id, "timestamp", value`

	var stored telemetry.TemperatureReading
	err := s.pool.QueryRow(ctx, query, r.DeviceID, r.Timestamp.UTC(), r.Value).
		Scan(&stored.DeviceID, &stored.Timestamp, &stored.Value)
	if err != nil {
		return telemetry.TemperatureReading{}, persistErr("append temperature", r.DeviceID, err)
	}
	stored.Timestamp = stored.Timestamp.UTC()
	return stored, nil
}

func (s *PostgresStore) ScanLevels(ctx context.Context, fn func(telemetry.LevelReading) error) error {
	rows, err := s.pool.Query(ctx, `SELECT `+levelColumns+` FROM level_logs ORDER BY "timestamp" ASC, device_id ASC`)
	if err != nil {
		return fmt.Errorf("scan levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanLevel(rows)
		if err != nil {
			return fmt.Errorf("scan levels: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) ScanTemperatures(ctx context.Context, fn func(telemetry.TemperatureReading) error) error {
	rows, err := s.pool.Query(ctx, `SELECT device_id, "timestamp", value FROM temperature_logs ORDER BY "timestamp" ASC, device_id ASC`)
	if err != nil {
		return fmt.Errorf("scan temperatures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r telemetry.TemperatureReading
		if err := rows.Scan(&r.DeviceID, &r.Timestamp, &r.Value); err != nil {
			return fmt.Errorf("scan temperatures: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) DeleteLevelsBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM level_logs WHERE "timestamp" < $1`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete levels: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteTemperaturesBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM temperature_logs WHERE "timestamp" < $1`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete temperatures: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Devices(ctx context.Context) ([]telemetry.Device, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]telemetry.Device, 0)
	for rows.Next() {
		var d telemetry.Device
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *PostgresStore) RecentLevels(ctx context.Context, limit int) ([]LevelView, error) {
	query := `
		SELECT l.device_id, l."timestamp", l.height, l.level, l.baseline, d.name, d.created_at
		FROM level_logs l
		JOIN devices d ON d.id = l.device_id
		ORDER BY l."timestamp" DESC, l.device_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent levels: %w", err)
	}
	defer rows.Close()

	out := make([]LevelView, 0)
	for rows.Next() {
		var v LevelView
		if err := rows.Scan(&v.DeviceID, &v.Timestamp, &v.Height, &v.Level, &v.Baseline, &v.Device.Name, &v.Device.CreatedAt); err != nil {
			return nil, err
		}
		v.Timestamp = v.Timestamp.UTC()
		v.Device.ID = v.DeviceID
		v.Device.CreatedAt = v.Device.CreatedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecentTemperatures(ctx context.Context, limit int) ([]TemperatureView, error) {
	query := `
		SELECT t.device_id, t."timestamp", t.value, d.name, d.created_at
		FROM temperature_logs t
		JOIN devices d ON d.id = t.device_id
		ORDER BY t."timestamp" DESC, t.device_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent temperatures: %w", err)
	}
	defer rows.Close()

	out := make([]TemperatureView, 0)
	for rows.Next() {
		var v TemperatureView
		if err := rows.Scan(&v.DeviceID, &v.Timestamp, &v.Value, &v.Device.Name, &v.Device.CreatedAt); err != nil {
			return nil, err
		}
		v.Timestamp = v.Timestamp.UTC()
		v.Device.ID = v.DeviceID
		v.Device.CreatedAt = v.Device.CreatedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}
