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

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hendranatadiria/tfg-backend/internal/baseline"
	"github.com/hendranatadiria/tfg-backend/internal/health"
	"github.com/hendranatadiria/tfg-backend/internal/influxsink"
	"github.com/hendranatadiria/tfg-backend/internal/ingest"
	"github.com/hendranatadiria/tfg-backend/internal/livecache"
	"github.com/hendranatadiria/tfg-backend/internal/logging"
	"github.com/hendranatadiria/tfg-backend/internal/storage"
)

func main() {
	// 1. Konfigurace (před loggerem logujeme jen na stdout)
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. MQTT klient musí existovat dřív než logger, aby šlo logovat i do MQTT.
	// Připojujeme se až na konci, kdy je pipeline hotová.
	sess := &session{}
	client := mqtt.NewClient(sess.clientOptions(cfg.MQTT))

	var out io.Writer = os.Stdout
	if cfg.LogMQTT {
		out = io.MultiWriter(os.Stdout, logging.NewMQTTWriter(client, serviceName))
	}
	logger := logging.New(out, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)
	sess.logger = logger

	logger.Info("Startuji Telemetry Ingestor", "config", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Úložiště (zdroj pravdy)
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Kritická chyba připojení k úložišti", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Úložiště připraveno", "driver", cfg.Storage.Driver)

	reporter := health.NewReporter(serviceName, logger, "/")
	reporter.AddCheck("storage", store.Ping)
	reporter.AddCheck("mqtt", func(ctx context.Context) error {
		if !client.IsConnectionOpen() {
			return errors.New("not connected")
		}
		return nil
	})

	// 4. Metriky a volitelné mirrory (Valkey, InfluxDB)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := ingest.NewMetrics(registry)
	if err != nil {
		logger.Error("Registrace metrik selhala", "error", err)
		os.Exit(1)
	}

	opts := []ingest.Option{ingest.WithMetrics(metrics)}

	if cfg.Valkey.Enabled() {
		cache, err := livecache.New(ctx, cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Valkey.TTL)
		if err != nil {
			// cache není zdroj pravdy, bez ní se dá běžet
			logger.Warn("Valkey nedostupný, live cache vypnuta", "addr", cfg.Valkey.Addr, "error", err)
		} else {
			defer cache.Close()
			opts = append(opts, ingest.WithMirror(cache))
			reporter.AddCheck("valkey", cache.Ping)
		}
	}

	if cfg.InfluxEnabled {
		sink, err := influxsink.New(ctx, cfg.Influx)
		if err != nil {
			logger.Warn("InfluxDB nedostupná, mirror vypnut", "url", cfg.Influx.URL, "error", err)
		} else {
			defer sink.Close()
			opts = append(opts, ingest.WithMirror(sink))
			reporter.AddCheck("influxdb", sink.Ping)
		}
	}

	// 5. Pipeline: koordinátor + dispatcher
	detector := baseline.NewDetector(store, cfg.Thresholds)
	coordinator := ingest.NewCoordinator(store, detector, logger, opts...)
	dispatcher := ingest.NewDispatcher(ctx, coordinator, cfg.MessageTimeout)
	sess.dispatcher = dispatcher

	// 6. HTTP server: /health a /metrics
	srv := newHTTPServer(cfg.HTTPPort, reporter, registry)
	go func() {
		logger.Info("HTTP server běží", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server spadl", "error", err)
		}
	}()

	// 7. Připojení k MQTT. S ConnectRetry se token dokončí až po prvním úspěšném připojení,
	// proto nečekáme a odběr řeší onConnect.
	client.Connect()
	logger.Info("Připojuji se k MQTT", "broker", cfg.MQTT.Broker)

	// 8. Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Vypínám službu...")

	// Nejdřív přestaneme přijímat, pak dokončíme rozpracované zprávy.
	client.Disconnect(250)
	dispatcher.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown selhal", "error", err)
	}
}

func newHTTPServer(port string, reporter *health.Reporter, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /health", reporter.Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
