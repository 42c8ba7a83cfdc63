package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hendranatadiria/tfg-backend/internal/health"
	"github.com/hendranatadiria/tfg-backend/internal/livecache"
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
	logger.Info("Startuji Home API", "config", cfg)

	ctx := context.Background()

	// 2. Připojení k úložišti (historie)
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k úložišti", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	reporter := health.NewReporter(serviceName, logger, "/")
	reporter.AddCheck("storage", store.Ping)

	// 3. Připojení k Valkey (live stav). Bez něj API běží dál, jen bez live hodnot.
	var live LiveReader
	if cfg.Valkey.Enabled() {
		cache, err := livecache.New(ctx, cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Valkey.TTL)
		if err != nil {
			logger.Warn("Valkey nedostupný, live data vypnuta", "addr", cfg.Valkey.Addr, "error", err)
		} else {
			defer cache.Close()
			live = cache
			reporter.AddCheck("valkey", cache.Ping)
		}
	}

	// 4. Wiring
	svc := NewService(store, live, logger)
	api := NewAPIHandler(svc, logger)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newRouter(api, reporter, cfg.CORSOrigins, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server spadl", "error", err)
			os.Exit(1)
		}
	}()

	// 5. Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Vypínám službu...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown selhal", "error", err)
	}
}

// newRouter složí router s middlewary: recovery, access log do slog a CORS.
func newRouter(api *APIHandler, reporter *health.Reporter, origins []string, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	api.RegisterRoutes(r)
	r.Handle("/health", reporter.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	logged := handlers.CustomLoggingHandler(io.Discard, r, accessLog(logger))
	recovered := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}), handlers.PrintRecoveryStack(false))(logged)
	return c.Handler(recovered)
}

// accessLog posílá access log do slog místo Apache formátu.
func accessLog(logger *slog.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Debug("HTTP request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"duration", time.Since(p.TimeStamp),
		)
	}
}

type recoveryLogger struct{ logger *slog.Logger }

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Panic v handleru", "panic", v)
}
