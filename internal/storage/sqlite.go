package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteStore je backend pro jednouzlové nasazení (Raspberry Pi u nádrže) a pro testy.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// sqliteParams nastavuje driver při otevření každého spojení.
var sqliteParams = []struct{ key, value string }{
	{"_journal_mode", "WAL"},
	{"_foreign_keys", "on"},
	{"_busy_timeout", "5000"},
}

// sqliteDSN doplní do DSN parametry, které v něm ještě nejsou.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqliteParams {
		if strings.Contains(dsn, p.key+"=") {
			continue
		}
		b.WriteString(sep + p.key + "=" + p.value)
		sep = "&"
	}
	return b.String()
}

// NewSQLiteStore otevře databázový soubor a založí schéma.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// SQLite zapisuje sériově, jedno spojení v poolu stačí.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *SQLiteStore) EnsureDevice(ctx context.Context, id string) (telemetry.Device, error) {
	const query = `
		INSERT INTO devices (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET id = excluded.id
		RETURNING id, name, created_at`

	var (
		d       telemetry.Device
		created int64
	)
	err := s.db.QueryRowContext(ctx, query, id, telemetry.DefaultDeviceName(id), toMillis(s.now())).
		Scan(&d.ID, &d.Name, &created)
	if err != nil {
		return telemetry.Device{}, persistErr("ensure device", id, err)
	}
	d.CreatedAt = fromMillis(created)
	return d, nil
}

func scanSQLiteLevel(scan func(dest ...any) error) (telemetry.LevelReading, error) {
	var (
		r  telemetry.LevelReading
		ts int64
	)
	if err := scan(&r.DeviceID, &ts, &r.Height, &r.Level, &r.Baseline); err != nil {
		return telemetry.LevelReading{}, err
	}
	r.Timestamp = fromMillis(ts)
	return r, nil
}

func (s *SQLiteStore) AppendLevel(ctx context.Context, r telemetry.LevelReading) (telemetry.LevelReading, error) {
	const query = `
		INSERT INTO level_logs (device_id, "timestamp", height, level) VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, "timestamp") DO UPDATE SET height = excluded.height, level = excluded.level
		RETURNING ` + levelColumns

	row := s.db.QueryRowContext(ctx, query, r.DeviceID, toMillis(r.Timestamp), r.Height, r.Level)
	stored, err := scanSQLiteLevel(row.Scan)
	if err != nil {
		return telemetry.LevelReading{}, persistErr("append level", r.DeviceID, err)
	}
	return stored, nil
}

func (s *SQLiteStore) UpdateLevelBaseline(ctx context.Context, deviceID string, ts time.Time, flag bool) (telemetry.LevelReading, error) {
	const query = `
		UPDATE level_logs SET baseline = (baseline OR ?)
		WHERE device_id = ? AND "timestamp" = ?
		RETURNING ` + levelColumns

	row := s.db.QueryRowContext(ctx, query, flag, deviceID, toMillis(ts))
	stored, err := scanSQLiteLevel(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return telemetry.LevelReading{}, ErrNotFound
	}
	if err != nil {
		return telemetry.LevelReading{}, persistErr("update baseline", deviceID, err)
	}
	return stored, nil
}

func (s *SQLiteStore) PriorQualifyingLevel(ctx context.Context, deviceID string, before time.Time) (telemetry.LevelReading, bool, error) {
	const query = `
		SELECT ` + levelColumns + `
		FROM level_logs
		WHERE device_id = ? AND "timestamp" < ? AND level > 0
		ORDER BY "timestamp" DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, deviceID, toMillis(before))
	prev, err := scanSQLiteLevel(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return telemetry.LevelReading{}, false, nil
	}
	if err != nil {
		return telemetry.LevelReading{}, false, persistErr("prior level", deviceID, err)
	}
	return prev, true, nil
}

func (s *SQLiteStore) AppendTemperature(ctx context.Context, r telemetry.TemperatureReading) (telemetry.TemperatureReading, error) {
	const query = `
		INSERT INTO temperature_logs (device_id, "timestamp", value) VALUES (?, ?, ?)
		ON CONFLICT (device_id, "timestamp") DO UPDATE SET value = excluded.value
		RETURNING device_id, "timestamp", value`

	var (
		stored telemetry.TemperatureReading
		ts     int64
	)
	err := s.db.QueryRowContext(ctx, query, r.DeviceID, toMillis(r.Timestamp), r.Value).
		Scan(&stored.DeviceID, &ts, &stored.Value)
	if err != nil {
		return telemetry.TemperatureReading{}, persistErr("append temperature", r.DeviceID, err)
	}
	stored.Timestamp = fromMillis(ts)
	return stored, nil
}

func (s *SQLiteStore) ScanLevels(ctx context.Context, fn func(telemetry.LevelReading) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+levelColumns+` FROM level_logs ORDER BY "timestamp" ASC, device_id ASC`)
	if err != nil {
		return fmt.Errorf("scan levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanSQLiteLevel(rows.Scan)
		if err != nil {
			return fmt.Errorf("scan levels: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) ScanTemperatures(ctx context.Context, fn func(telemetry.TemperatureReading) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, "timestamp", value FROM temperature_logs ORDER BY "timestamp" ASC, device_id ASC`)
	if err != nil {
		return fmt.Errorf("scan temperatures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r  telemetry.TemperatureReading
			ts int64
		)
		if err := rows.Scan(&r.DeviceID, &ts, &r.Value); err != nil {
			return fmt.Errorf("scan temperatures: %w", err)
		}
		r.Timestamp = fromMillis(ts)
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) DeleteLevelsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM level_logs WHERE "timestamp" < ?`, toMillis(t))
	if err != nil {
		return 0, fmt.Errorf("delete levels: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) DeleteTemperaturesBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM temperature_logs WHERE "timestamp" < ?`, toMillis(t))
	if err != nil {
		return 0, fmt.Errorf("delete temperatures: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Devices(ctx context.Context) ([]telemetry.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]telemetry.Device, 0)
	for rows.Next() {
		var (
			d       telemetry.Device
			created int64
		)
		if err := rows.Scan(&d.ID, &d.Name, &created); err != nil {
			return nil, err
		}
		d.CreatedAt = fromMillis(created)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *SQLiteStore) RecentLevels(ctx context.Context, limit int) ([]LevelView, error) {
	if limit <= 0 {
		limit = -1 // SQLite: záporný LIMIT znamená bez omezení
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.device_id, l."timestamp", l.height, l.level, l.baseline, d.name, d.created_at
		FROM level_logs l
		JOIN devices d ON d.id = l.device_id
		ORDER BY l."timestamp" DESC, l.device_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent levels: %w", err)
	}
	defer rows.Close()

	out := make([]LevelView, 0)
	for rows.Next() {
		var (
			v           LevelView
			ts, created int64
		)
		if err := rows.Scan(&v.DeviceID, &ts, &v.Height, &v.Level, &v.Baseline, &v.Device.Name, &created); err != nil {
			return nil, err
		}
		v.Timestamp = fromMillis(ts)
		v.Device.ID = v.DeviceID
		v.Device.CreatedAt = fromMillis(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecentTemperatures(ctx context.Context, limit int) ([]TemperatureView, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.device_id, t."timestamp", t.value, d.name, d.created_at
		FROM temperature_logs t
		JOIN devices d ON d.id = t.device_id
		ORDER BY t."timestamp" DESC, t.device_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent temperatures: %w", err)
	}
	defer rows.Close()

	out := make([]TemperatureView, 0)
	for rows.Next() {
		var (
			v           TemperatureView
			ts, created int64
		)
		if err := rows.Scan(&v.DeviceID, &ts, &v.Value, &v.Device.Name, &created); err != nil {
			return nil, err
		}
		v.Timestamp = fromMillis(ts)
		v.Device.ID = v.DeviceID
		v.Device.CreatedAt = fromMillis(created)
		out = append(out, v)
	}
	return out, rows.Err()
}
