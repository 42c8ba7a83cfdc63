package main

import (
	"log/slog"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/baseline"
	"github.com/hendranatadiria/tfg-backend/internal/config"
	"github.com/hendranatadiria/tfg-backend/internal/influxsink"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

const serviceName = "telemetry-ingestor"

// Config drží nastavení ingestoru: MQTT, úložiště, mirrory a prahy detektoru.
type Config struct {
	MQTT    config.MQTT
	Storage storage.Options
	Valkey  config.Valkey

	Influx        influxsink.Options
	InfluxEnabled bool

	Thresholds     baseline.Thresholds
	MessageTimeout time.Duration

	HTTPPort string
	LogLevel string
	LogMQTT  bool
}

// LoadConfig načte konfiguraci. Neplatné prahy detektoru jsou chyba, služba nenastartuje.
func LoadConfig() (Config, error) {
	c, err := config.Load(serviceName)
	if err != nil {
		return Config{}, err
	}
	return fromLoaded(c)
}

func fromLoaded(c *config.Config) (Config, error) {
	thresholds, err := c.Thresholds()
	if err != nil {
		return Config{}, err
	}
	influx, influxOn := c.Influx()

	return Config{
		MQTT:           c.MQTT(),
		Storage:        c.Storage(),
		Valkey:         c.Valkey(),
		Influx:         influx,
		InfluxEnabled:  influxOn,
		Thresholds:     thresholds,
		MessageTimeout: c.MessageTimeout(),
		HTTPPort:       c.HTTPPort(),
		LogLevel:       c.LogLevel(),
		LogMQTT:        c.LogMQTT(),
	}, nil
}

// LogValue vypíše konfiguraci bez hesel a connection stringů.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mqtt_broker", c.MQTT.Broker),
		slog.String("mqtt_client_id", c.MQTT.ClientID),
		slog.Bool("mqtt_clean_session", c.MQTT.CleanSession),
		slog.String("storage_driver", c.Storage.Driver),
		slog.Bool("valkey", c.Valkey.Enabled()),
		slog.Bool("influx", c.InfluxEnabled),
		slog.Float64("baseline_level_delta", c.Thresholds.LevelDelta),
		slog.Duration("baseline_time_gap", c.Thresholds.TimeGap),
		slog.Duration("message_timeout", c.MessageTimeout),
		slog.String("http_port", c.HTTPPort),
		slog.String("log_level", c.LogLevel),
		slog.Bool("log_mqtt", c.LogMQTT),
	)
}
