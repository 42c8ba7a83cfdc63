package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/export"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

// Runner jednou za interval zazálohuje obě tabulky do CSV a pak smaže
// měření starší než MaxAge. Bez úspěšné zálohy se nemaže nic.
type Runner struct {
	archive   storage.Archive
	exportDir string
	maxAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewRunner(archive storage.Archive, exportDir string, maxAge time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		archive:   archive,
		exportDir: exportDir,
		maxAge:    maxAge,
		logger:    logger,
		now:       time.Now,
	}
}

// Result shrnuje jeden běh.
type Result struct {
	Files               []export.File
	Cutoff              time.Time
	DeletedLevels       int64
	DeletedTemperatures int64
}

func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	now := r.now().UTC()
	res := Result{Cutoff: now.Add(-r.maxAge)}

	// 1. Záloha
	files, err := export.ExportAll(ctx, r.archive, r.exportDir, now)
	res.Files = files
	if err != nil {
		return res, fmt.Errorf("backup failed, purge skipped: %w", err)
	}
	for _, f := range files {
		r.logger.Info("Backup written", "path", f.Path, "rows", f.Rows)
	}

	// 2. Mazání starých dat
	if res.DeletedLevels, err = r.archive.DeleteLevelsBefore(ctx, res.Cutoff); err != nil {
		return res, fmt.Errorf("purge levels: %w", err)
	}
	if res.DeletedTemperatures, err = r.archive.DeleteTemperaturesBefore(ctx, res.Cutoff); err != nil {
		return res, fmt.Errorf("purge temperatures: %w", err)
	}

	r.logger.Info("Retention run done",
		"cutoff", res.Cutoff,
		"deleted_levels", res.DeletedLevels,
		"deleted_temperatures", res.DeletedTemperatures,
	)
	return res, nil
}

// Run spustí první běh hned a další podle intervalu, dokud se ctx nezruší.
// Chyba běhu se zaloguje a čeká se na další tik.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Retention run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
