package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hendranatadiria/tfg-backend/internal/logging"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

func main() {
	// 1. Konfigurace a logger
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Startuji Log Retention", "config", cfg)

	// 2. Ukončení na SIGINT/SIGTERM zruší context, rozpracovaný běh doběhne s chybou.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Úložiště
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k úložišti", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 4. Hlavní smyčka
	NewRunner(store, cfg.Retention.ExportDir, cfg.Retention.MaxAge, logger).Run(ctx, cfg.Retention.Interval)

	logger.Info("Vypínám službu...")
}
