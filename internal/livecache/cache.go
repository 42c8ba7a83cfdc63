// Package livecache drží v Valkey (Redis) poslední hodnotu každého zařízení.
// Dashboard z ní čte aktuální stav, historie zůstává v relační DB.
package livecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// ErrNotCached: pro zařízení není v cache nic (nový nebo expirovaný klíč).
var ErrNotCached = errors.New("livecache: nothing cached for device")

const (
	kindLevel       = "level"
	kindTemperature = "temp"
)

// Key vrací klíč, např. "device:last:level:D1".
func Key(kind, deviceID string) string {
	return fmt.Sprintf("device:last:%s:%s", kind, deviceID)
}

// Snapshot je poslední známý stav zařízení. Chybějící část je nil.
type Snapshot struct {
	DeviceID    string                        `json:"device_id"`
	Level       *telemetry.LevelReading       `json:"level,omitempty"`
	Temperature *telemetry.TemperatureReading `json:"temperature,omitempty"`
}

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New se připojí a ověří spojení. ttl <= 0 znamená bez expirace.
func New(ctx context.Context, addr, password string, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("valkey %s not reachable: %w", addr, err)
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

func (c *Cache) Name() string { return "valkey" }

func (c *Cache) MirrorLevel(ctx context.Context, r telemetry.LevelReading) error {
	return c.set(ctx, Key(kindLevel, r.DeviceID), r, r.Timestamp)
}

func (c *Cache) MirrorTemperature(ctx context.Context, r telemetry.TemperatureReading) error {
	return c.set(ctx, Key(kindTemperature, r.DeviceID), r, r.Timestamp)
}

// set zapíše hodnotu jen tehdy, když není starší než to, co už v cache je.
// Zprávy chodí souběžně a mimo pořadí, starší měření nesmí přepsat novější.
func (c *Cache) set(ctx context.Context, key string, v any, ts time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && newer(current, ts) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// souběžný zápis vyhrál, jeho hodnota je stejně čerstvá
		return nil
	}
	if err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

// newer říká, jestli uložená hodnota má novější timestamp než ts.
func newer(stored []byte, ts time.Time) bool {
	var probe struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(stored, &probe); err != nil {
		return false
	}
	return probe.Timestamp.After(ts)
}

// Latest načte poslední hladinu i teplotu jedním MGET.
func (c *Cache) Latest(ctx context.Context, deviceID string) (Snapshot, error) {
	vals, err := c.rdb.MGet(ctx, Key(kindLevel, deviceID), Key(kindTemperature, deviceID)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("valkey mget %s: %w", deviceID, err)
	}
	return decodeSnapshot(deviceID, vals)
}

func decodeSnapshot(deviceID string, vals []any) (Snapshot, error) {
	snap := Snapshot{DeviceID: deviceID}
	if len(vals) != 2 {
		return snap, fmt.Errorf("valkey mget %s: expected 2 values, got %d", deviceID, len(vals))
	}

	if s, ok := vals[0].(string); ok {
		var r telemetry.LevelReading
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return snap, fmt.Errorf("decode cached level for %s: %w", deviceID, err)
		}
		snap.Level = &r
	}
	if s, ok := vals[1].(string); ok {
		var r telemetry.TemperatureReading
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return snap, fmt.Errorf("decode cached temperature for %s: %w", deviceID, err)
		}
		snap.Temperature = &r
	}

	if snap.Level == nil && snap.Temperature == nil {
		return snap, ErrNotCached
	}
	return snap, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
