// Package baseline rozhoduje, jestli nové měření hladiny začíná nový cyklus plnění (T0).
//
// Jde o heuristiku: prudký nárůst hladiny znamená doplnění nádrže, dlouhá mezera
// v měření znamená restart měření. Falešné výsledky se tolerují.
package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// Thresholds jsou laditelné prahy detektoru.
type Thresholds struct {
	// LevelDelta: nárůst hladiny ostře větší než tato hodnota je doplnění.
	LevelDelta float64
	// TimeGap: mezera mezi měřeními větší nebo rovna této hodnotě je restart.
	TimeGap time.Duration
}

// DefaultThresholds: 20 jednotek hladiny, 30 minut.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LevelDelta: 20,
		TimeGap:    30 * time.Minute,
	}
}

func (t Thresholds) Validate() error {
	if t.LevelDelta < 0 {
		return fmt.Errorf("baseline level delta must not be negative, got %v", t.LevelDelta)
	}
	if t.TimeGap <= 0 {
		return fmt.Errorf("baseline time gap must be positive, got %v", t.TimeGap)
	}
	return nil
}

// PriorLookup najde poslední předchozí kvalifikující měření zařízení.
type PriorLookup interface {
	PriorQualifyingLevel(ctx context.Context, deviceID string, before time.Time) (telemetry.LevelReading, bool, error)
}

// Detector porovnává uložené měření s předchozím kvalifikujícím měřením.
type Detector struct {
	lookup     PriorLookup
	thresholds Thresholds
}

func NewDetector(lookup PriorLookup, thresholds Thresholds) *Detector {
	return &Detector{lookup: lookup, thresholds: thresholds}
}

func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Evaluate se volá až pro uložené měření. Vrací true, pokud má být označeno jako T0.
// První kvalifikující měření zařízení T0 není: není z čeho přecházet.
func (d *Detector) Evaluate(ctx context.Context, current telemetry.LevelReading) (bool, error) {
	prev, found, err := d.lookup.PriorQualifyingLevel(ctx, current.DeviceID, current.Timestamp)
	if err != nil {
		return false, fmt.Errorf("lookup previous level for %s: %w", current.DeviceID, err)
	}
	if !found {
		return false, nil
	}
	return d.Transition(prev, current), nil
}

// Transition je samotné pravidlo nad dvojicí měření.
func (d *Detector) Transition(prev, current telemetry.LevelReading) bool {
	levelDelta := current.Level - prev.Level
	gap := current.Timestamp.Sub(prev.Timestamp).Abs()

	return levelDelta > d.thresholds.LevelDelta || gap >= d.thresholds.TimeGap
}
