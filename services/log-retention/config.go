package main

import (
	"log/slog"

	"github.com/hendranatadiria/tfg-backend/internal/config"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

const serviceName = "log-retention"

type Config struct {
	Storage   storage.Options
	Retention config.Retention
	LogLevel  string
}

func LoadConfig() (Config, error) {
	c, err := config.Load(serviceName)
	if err != nil {
		return Config{}, err
	}
	r, err := c.Retention()
	if err != nil {
		return Config{}, err
	}
	return Config{Storage: c.Storage(), Retention: r, LogLevel: c.LogLevel()}, nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("storage_driver", c.Storage.Driver),
		slog.Duration("interval", c.Retention.Interval),
		slog.Duration("max_age", c.Retention.MaxAge),
		slog.String("export_dir", c.Retention.ExportDir),
	)
}
