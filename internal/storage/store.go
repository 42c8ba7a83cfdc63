// Package storage drží zařízení a měření. Všechny zápisy jsou upserty nad unikátním
// klíčem (zařízení, resp. zařízení + čas), takže souběžné zprávy se stejným klíčem
// nevytvoří duplicitu.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

var (
	// ErrNotFound vrací UpdateLevelBaseline, když řádek s daným klíčem neexistuje.
	ErrNotFound = errors.New("reading not found")

	// ErrUnknownDevice znamená zápis měření pro zařízení, které není v registru.
	ErrUnknownDevice = errors.New("device not registered")
)

// PersistenceError obaluje chybu úložiště spolu s kontextem operace.
type PersistenceError struct {
	Op       string
	DeviceID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s (device %q): %v", e.Op, e.DeviceID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op, deviceID string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, DeviceID: deviceID, Err: err}
}

// Registry zajišťuje existenci záznamu zařízení.
type Registry interface {
	// EnsureDevice vrátí existující zařízení, nebo ho atomicky založí
	// s výchozím jménem. Dva souběžné volání se stejným ID vrátí týž řádek.
	EnsureDevice(ctx context.Context, id string) (telemetry.Device, error)
}

// LevelStore ukládá měření hladiny.
type LevelStore interface {
	// AppendLevel je upsert podle (zařízení, čas). Existující řádek dostane nové
	// Height a Level; příznak Baseline zůstane, jak byl.
	AppendLevel(ctx context.Context, r telemetry.LevelReading) (telemetry.LevelReading, error)

	// UpdateLevelBaseline nastaví příznak na řádku s přesně tímto klíčem.
	// Už nastavený příznak se nevrací zpět. Chybějící řádek vrací ErrNotFound.
	UpdateLevelBaseline(ctx context.Context, deviceID string, ts time.Time, flag bool) (telemetry.LevelReading, error)

	// PriorQualifyingLevel vrátí nejnovější měření zařízení starší než before
	// s Level > 0. Druhá návratová hodnota je false, pokud žádné není.
	PriorQualifyingLevel(ctx context.Context, deviceID string, before time.Time) (telemetry.LevelReading, bool, error)
}

// TemperatureStore ukládá měření teploty (upsert podle zařízení a času).
type TemperatureStore interface {
	AppendTemperature(ctx context.Context, r telemetry.TemperatureReading) (telemetry.TemperatureReading, error)
}

// Archive je přístup pro export a mazání starých dat.
// Callback ve Scan* nesmí volat zpět do úložiště.
type Archive interface {
	ScanLevels(ctx context.Context, fn func(telemetry.LevelReading) error) error
	ScanTemperatures(ctx context.Context, fn func(telemetry.TemperatureReading) error) error
	DeleteLevelsBefore(ctx context.Context, t time.Time) (int64, error)
	DeleteTemperaturesBefore(ctx context.Context, t time.Time) (int64, error)
}

// LevelView je měření hladiny spojené se zařízením (pro dashboard).
type LevelView struct {
	telemetry.LevelReading
	Device telemetry.Device `json:"device"`
}

// TemperatureView je měření teploty spojené se zařízením.
type TemperatureView struct {
	telemetry.TemperatureReading
	Device telemetry.Device `json:"device"`
}

// Dashboard je čtecí rozhraní pro dashboard, vše od nejnovějšího.
// limit <= 0 znamená bez omezení.
type Dashboard interface {
	Devices(ctx context.Context) ([]telemetry.Device, error)
	RecentLevels(ctx context.Context, limit int) ([]LevelView, error)
	RecentTemperatures(ctx context.Context, limit int) ([]TemperatureView, error)
}

// Store sdružuje všechna rozhraní jednoho backendu.
type Store interface {
	Registry
	LevelStore
	TemperatureStore
	Archive
	Dashboard

	Ping(ctx context.Context) error
	Close() error
}

// Podporované backendy.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Options vybírá backend a jeho připojení.
type Options struct {
	Driver      string
	PostgresURL string
	SQLiteDSN   string
}

// Open otevře úložiště podle Options.Driver a připraví schéma.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, opts.PostgresURL)
	case DriverSQLite:
		return NewSQLiteStore(ctx, opts.SQLiteDSN)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
