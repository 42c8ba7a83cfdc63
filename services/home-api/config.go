package main

import (
	"log/slog"

	"github.com/hendranatadiria/tfg-backend/internal/config"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

const serviceName = "home-api"

// Config zapouzdřuje nastavení REST API dashboardu.
type Config struct {
	HTTPPort    string
	CORSOrigins []string

	// Storage: odkud se čte historie (stejná DB, do které píše ingestor).
	Storage storage.Options

	// Valkey: live stav; bez adresy API vrací jen historii.
	Valkey config.Valkey

	LogLevel string
}

func LoadConfig() (Config, error) {
	c, err := config.Load(serviceName)
	if err != nil {
		return Config{}, err
	}
	return Config{
		HTTPPort:    c.HTTPPort(),
		CORSOrigins: c.CORSOrigins(),
		Storage:     c.Storage(),
		Valkey:      c.Valkey(),
		LogLevel:    c.LogLevel(),
	}, nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_port", c.HTTPPort),
		slog.Any("cors_origins", c.CORSOrigins),
		slog.String("storage_driver", c.Storage.Driver),
		slog.Bool("valkey", c.Valkey.Enabled()),
		slog.String("log_level", c.LogLevel),
	)
}
