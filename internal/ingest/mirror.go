package ingest

import (
	"context"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// Mirror dostává kopii každého uloženého měření. Relační úložiště zůstává
// zdrojem pravdy, chyba mirroru zprávu neshodí.
type Mirror interface {
	Name() string
	MirrorLevel(ctx context.Context, r telemetry.LevelReading) error
	MirrorTemperature(ctx context.Context, r telemetry.TemperatureReading) error
}
