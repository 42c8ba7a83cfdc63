package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hendranatadiria/tfg-backend/internal/livecache"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

// errLiveDisabled: služba běží bez Valkey.
var errLiveDisabled = errors.New("live cache disabled")

// LiveReader čte poslední stav zařízení (livecache.Cache).
type LiveReader interface {
	Latest(ctx context.Context, deviceID string) (livecache.Snapshot, error)
}

// Service skládá data z relační DB (historie) a z Valkey (aktuální stav).
type Service struct {
	db     storage.Dashboard
	live   LiveReader
	logger *slog.Logger
}

// NewService: live může být nil, pak dashboard ukazuje jen historii.
func NewService(db storage.Dashboard, live LiveReader, logger *slog.Logger) *Service {
	return &Service{db: db, live: live, logger: logger}
}

// Devices vrací všechna zařízení s posledním stavem z cache, pokud je.
func (s *Service) Devices(ctx context.Context) ([]DeviceDTO, error) {
	// 1. Zařízení z relační DB
	devices, err := s.db.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	// 2. Ke každému zařízení poslední stav z cache (Valkey), pokud běží
	out := make([]DeviceDTO, 0, len(devices))
	for _, d := range devices {
		dto := DeviceDTO{Device: d}
		if s.live != nil {
			snap, err := s.live.Latest(ctx, d.ID)
			switch {
			case err == nil:
				dto.Live = &snap
			case errors.Is(err, livecache.ErrNotCached):
				// zařízení zatím nic neposlalo nebo vypršelo TTL
			default:
				// výpadek cache seznam neshodí, jen chybí live hodnoty
				s.logger.Warn("Live lookup failed", "device_id", d.ID, "error", err)
			}
		}
		out = append(out, dto)
	}
	return out, nil
}

// Levels vrací posledních limit měření hladiny i se jménem zařízení.
func (s *Service) Levels(ctx context.Context, limit int) ([]storage.LevelView, error) {
	rows, err := s.db.RecentLevels(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent levels: %w", err)
	}
	return rows, nil
}

// Temperatures: totéž pro teploty.
func (s *Service) Temperatures(ctx context.Context, limit int) ([]storage.TemperatureView, error) {
	rows, err := s.db.RecentTemperatures(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent temperatures: %w", err)
	}
	return rows, nil
}

// Live vrací poslední stav jednoho zařízení.
func (s *Service) Live(ctx context.Context, deviceID string) (livecache.Snapshot, error) {
	if s.live == nil {
		return livecache.Snapshot{}, errLiveDisabled
	}
	return s.live.Latest(ctx, deviceID)
}
