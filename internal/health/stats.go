package health

import (
	"context"
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const mb = 1024.0 * 1024.0

// SystemStats je snímek stavu stroje a procesu služby.
type SystemStats struct {
	CPULoad     float64 `json:"cpu_load"`
	RAMUsedMB   float64 `json:"ram_used_mb"`
	RAMTotalMB  float64 `json:"ram_total_mb"`
	ProcessMB   float64 `json:"process_rss_mb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
}

// CollectStats změří stav systému. Chyba jednoho měření se zaloguje
// a ostatní hodnoty se vrátí i tak. diskPath je oddíl, kde leží data služby.
func CollectStats(ctx context.Context, logger *slog.Logger, diskPath string) SystemStats {
	var stats SystemStats

	// interval 0: porovnání s předchozím voláním, neblokuje request
	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		stats.CPULoad = percentages[0]
	} else if err != nil {
		logger.Warn("CPU stats unavailable", "error", err)
	}

	// Linux používá volnou RAM jako cache, "used" je proto Total - Available.
	if vMem, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.RAMUsedMB = float64(vMem.Total-vMem.Available) / mb
		stats.RAMTotalMB = float64(vMem.Total) / mb
	} else {
		logger.Warn("Memory stats unavailable", "error", err)
	}

	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessMB = float64(info.RSS) / mb
		}
	}

	if diskPath == "" {
		diskPath = "/"
	}
	if d, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		stats.DiskUsedGB = float64(d.Used) / mb / 1024.0
		stats.DiskTotalGB = float64(d.Total) / mb / 1024.0
	} else {
		logger.Warn("Disk stats unavailable", "path", diskPath, "error", err)
	}

	return stats
}
