// Package ingest zpracovává jednu zprávu z MQTT od začátku do konce:
// dekódování, registr zařízení, uložení a u hladiny detekce T0.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/baseline"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// Outcome je koncový stav zpracování jedné zprávy.
type Outcome int

const (
	// OutcomeIgnored: topic, který pipeline nezpracovává.
	OutcomeIgnored Outcome = iota
	// OutcomeSuccess: měření je uložené (a u hladiny vyhodnocené).
	OutcomeSuccess
	// OutcomeRejected: zprávu nešlo dekódovat, nic se neukládalo.
	OutcomeRejected
	// OutcomeFailed: úložiště selhalo, zpráva je zahozena.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store je část úložiště, kterou koordinátor potřebuje.
type Store interface {
	storage.Registry
	storage.LevelStore
	storage.TemperatureStore
}

// DetectionError je selhání v best-effort kroku detekce T0.
// Uložené měření tím zůstává platné.
type DetectionError struct {
	Step string
	Err  error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("baseline %s: %v", e.Step, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Coordinator propojuje dekodér, registr, úložiště a detektor.
// Nedrží žádný stav mezi zprávami, lze ho volat z mnoha goroutin naráz.
type Coordinator struct {
	decoder  *telemetry.Decoder
	store    Store
	detector *baseline.Detector
	mirrors  []Mirror
	metrics  *Metrics
	logger   *slog.Logger
}

// Option upravuje Coordinator při vytváření.
type Option func(*Coordinator)

// WithMirror přidá kopii uložených měření (live cache, InfluxDB).
func WithMirror(m Mirror) Option {
	return func(c *Coordinator) { c.mirrors = append(c.mirrors, m) }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithDecoder(d *telemetry.Decoder) Option {
	return func(c *Coordinator) { c.decoder = d }
}

func NewCoordinator(store Store, detector *baseline.Detector, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		decoder:  telemetry.NewDecoder(),
		store:    store,
		detector: detector,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle zpracuje jednu zprávu. Žádná chyba neopouští hranici zprávy,
// vše se převede na Outcome a zaloguje.
func (c *Coordinator) Handle(ctx context.Context, topic string, payload []byte) Outcome {
	if !telemetry.KnownTopic(topic) {
		c.logger.Debug("Ignoring message on unhandled topic", "topic", topic)
		c.metrics.observe(topic, OutcomeIgnored, 0)
		return OutcomeIgnored
	}

	started := time.Now()
	outcome := c.handle(ctx, topic, payload)
	c.metrics.observe(topic, outcome, time.Since(started))
	return outcome
}

func (c *Coordinator) handle(ctx context.Context, topic string, payload []byte) Outcome {
	// A. Dekódování
	reading, err := c.decoder.Decode(topic, payload)
	if err != nil {
		reason := "unknown"
		var de *telemetry.DecodeError
		if errors.As(err, &de) {
			reason = de.Reason.String()
		}
		c.logger.Warn("Message rejected", "topic", topic, "reason", reason, "payload_size", len(payload), "error", err)
		return OutcomeRejected
	}

	key := reading.Key()
	log := c.logger.With("topic", topic, "device_id", key.DeviceID, "timestamp", key.Timestamp)

	// B. Registr zařízení (find-or-create v jednom kroku)
	if _, err := c.store.EnsureDevice(ctx, key.DeviceID); err != nil {
		log.Error("Device upsert failed, message dropped", "outcome", OutcomeFailed.String(), "error", err)
		return OutcomeFailed
	}

	// C. Uložení, u hladiny pak detekce T0
	switch r := reading.(type) {
	case telemetry.TemperatureReading:
		stored, err := c.store.AppendTemperature(ctx, r)
		if err != nil {
			log.Error("Temperature append failed, message dropped", "outcome", OutcomeFailed.String(), "error", err)
			return OutcomeFailed
		}
		c.mirrorTemperature(ctx, log, stored)
		log.Debug("Temperature stored", "value", stored.Value)

	case telemetry.LevelReading:
		stored, err := c.store.AppendLevel(ctx, r)
		if err != nil {
			log.Error("Level append failed, message dropped", "outcome", OutcomeFailed.String(), "error", err)
			return OutcomeFailed
		}
		stored = c.detect(ctx, log, stored)
		c.mirrorLevel(ctx, log, stored)
		log.Debug("Level stored", "height", stored.Height, "level", stored.Level, "baseline", stored.Baseline)
	}

	return OutcomeSuccess
}

// detect běží až po uložení měření. Chyba se jen loguje, uložené měření se nevrací.
func (c *Coordinator) detect(ctx context.Context, log *slog.Logger, stored telemetry.LevelReading) telemetry.LevelReading {
	if stored.Baseline {
		return stored
	}

	flag, err := c.detector.Evaluate(ctx, stored)
	if err != nil {
		log.Error("Baseline detection failed", "error", &DetectionError{Step: "evaluate", Err: err})
		return stored
	}
	if !flag {
		return stored
	}

	updated, err := c.store.UpdateLevelBaseline(ctx, stored.DeviceID, stored.Timestamp, true)
	if err != nil {
		log.Error("Baseline flag update failed", "error", &DetectionError{Step: "update", Err: err})
		return stored
	}

	c.metrics.baselineFlagged()
	log.Info("Baseline (T0) reading detected", "level", updated.Level)
	return updated
}

func (c *Coordinator) mirrorLevel(ctx context.Context, log *slog.Logger, r telemetry.LevelReading) {
	for _, m := range c.mirrors {
		if err := m.MirrorLevel(ctx, r); err != nil {
			log.Warn("Mirror write failed", "mirror", m.Name(), "error", err)
		}
	}
}

func (c *Coordinator) mirrorTemperature(ctx context.Context, log *slog.Logger, r telemetry.TemperatureReading) {
	for _, m := range c.mirrors {
		if err := m.MirrorTemperature(ctx, r); err != nil {
			log.Warn("Mirror write failed", "mirror", m.Name(), "error", err)
		}
	}
}
