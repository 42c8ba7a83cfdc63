// Package health vystavuje /health: stav závislostí služby a snímek systému.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check ověří jednu závislost (DB, cache, broker). nil znamená v pořádku.
type Check func(ctx context.Context) error

// Report je tělo odpovědi /health.
type Report struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
	System  *SystemStats      `json:"system,omitempty"`
}

type named struct {
	name  string
	check Check
}

type Reporter struct {
	service  string
	logger   *slog.Logger
	diskPath string
	timeout  time.Duration

	mu     sync.RWMutex
	checks []named

	collect func(ctx context.Context) SystemStats
}

func NewReporter(service string, logger *slog.Logger, diskPath string) *Reporter {
	r := &Reporter{
		service:  service,
		logger:   logger,
		diskPath: diskPath,
		timeout:  3 * time.Second,
	}
	r.collect = func(ctx context.Context) SystemStats {
		return CollectStats(ctx, r.logger, r.diskPath)
	}
	return r
}

// AddCheck zaregistruje kontrolu. Jméno se objeví v "checks".
func (r *Reporter) AddCheck(name string, c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, named{name: name, check: c})
}

// Run provede všechny kontroly souběžně.
func (r *Reporter) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.RLock()
	checks := append([]named(nil), r.checks...)
	r.mu.RUnlock()

	results := make([]string, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c named) {
			defer wg.Done()
			if err := c.check(ctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}(i, c)
	}
	wg.Wait()

	rep := Report{Status: "ok", Service: r.service, Checks: make(map[string]string, len(checks))}
	for i, c := range checks {
		rep.Checks[c.name] = results[i]
		if results[i] != "ok" {
			rep.Status = "degraded"
		}
	}
	return rep
}

// Handler vrací 200 když jsou všechny kontroly v pořádku, jinak 503.
// ?system=1 přidá snímek systému (gopsutil).
func (r *Reporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rep := r.Run(req.Context())
		if req.URL.Query().Get("system") != "" {
			stats := r.collect(req.Context())
			rep.System = &stats
		}

		if rep.Status != "ok" {
			failing := make([]string, 0)
			for name, res := range rep.Checks {
				if res != "ok" {
					failing = append(failing, name)
				}
			}
			sort.Strings(failing)
			r.logger.Warn("Health check failing", "checks", failing)
		}

		w.Header().Set("Content-Type", "application/json")
		if rep.Status == "ok" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(rep); err != nil {
			r.logger.Error("Failed to write health response", "error", err)
		}
	})
}
