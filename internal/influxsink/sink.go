// Package influxsink zrcadlí uložená měření do InfluxDB pro grafy v čase.
package influxsink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

const (
	MeasurementLevel       = "level_log"
	MeasurementTemperature = "temperature_log"
)

// pointWriter je podmnožina api.WriteAPIBlocking, kterou sink používá.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type Options struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type Sink struct {
	client influxdb2.Client
	writer pointWriter
	bucket string
}

// New vytvoří klienta a ověří, že InfluxDB hlásí stav "pass".
func New(ctx context.Context, opts Options) (*Sink, error) {
	client := influxdb2.NewClient(opts.URL, opts.Token)

	s := &Sink{
		client: client,
		writer: client.WriteAPIBlocking(opts.Org, opts.Bucket),
		bucket: opts.Bucket,
	}
	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) Name() string { return "influxdb" }

func (s *Sink) MirrorLevel(ctx context.Context, r telemetry.LevelReading) error {
	if err := s.writer.WritePoint(ctx, LevelPoint(r)); err != nil {
		return fmt.Errorf("influx write %s/%s: %w", s.bucket, MeasurementLevel, err)
	}
	return nil
}

func (s *Sink) MirrorTemperature(ctx context.Context, r telemetry.TemperatureReading) error {
	if err := s.writer.WritePoint(ctx, TemperaturePoint(r)); err != nil {
		return fmt.Errorf("influx write %s/%s: %w", s.bucket, MeasurementTemperature, err)
	}
	return nil
}

// LevelPoint: tag device_id, pole height, level a baseline, čas měření.
func LevelPoint(r telemetry.LevelReading) *write.Point {
	return influxdb2.NewPoint(
		MeasurementLevel,
		map[string]string{"device_id": r.DeviceID},
		map[string]interface{}{
			"height":   r.Height,
			"level":    r.Level,
			"baseline": r.Baseline,
		},
		r.Timestamp.UTC(),
	)
}

func TemperaturePoint(r telemetry.TemperatureReading) *write.Point {
	return influxdb2.NewPoint(
		MeasurementTemperature,
		map[string]string{"device_id": r.DeviceID},
		map[string]interface{}{"value": r.Value},
		r.Timestamp.UTC(),
	)
}

func (s *Sink) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb not reachable: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health %s: %s", health.Status, msg)
	}
	return nil
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}
