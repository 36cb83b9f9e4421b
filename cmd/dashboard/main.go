// Command dashboard serves the EcoVision electricity analytics API.
//
// Clients upload a usage table (CSV or JSON rows with a date and a kWh
// column) and get back cleaned statistics, calendar aggregates,
// period-over-period comparisons, a daily forecast with uncertainty bounds,
// PNG charts, and language-model efficiency tips. When a source is
// configured, the dashboard also refreshes it on an interval, keeps the latest
// report at /api/source/report and, if a broker is set, publishes it over MQTT.
//
// Usage:
//
//	dashboard \
//	  -listen=:8080 \
//	  -model=additive -periods=7 \
//	  -gemini-api-key=$GEMINI_API_KEY \
//	  -source=sqlite -refresh-interval=1h
//
// Environment variables:
//
//	LISTEN           - HTTP listen address (default: :8080)
//	CONFIG_FILE      - Optional YAML configuration file
//	MAX_ROWS         - Cleaned rows kept per dataset (default: 10000)
//	MODEL            - additive, arima, sarima, or byom (default: additive)
//	PERIODS          - Default forecast horizon in days (default: 7)
//	GEMINI_API_KEY   - Enables efficiency tips and questions
//	CACHE            - Tips cache: memory, redis, or none (default: memory)
//	SOURCE           - Usage source kind; ADAPTER_* variables configure it
//	MQTT_BROKER      - Broker host:port for publishing source reports
//	TARIFF_RATE      - Unit rate per kWh for cost projections
//	LOG_LEVEL        - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT       - Logging format: text, json (default: text)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HatiCode/ecovision/cmd/dashboard/config"
	"github.com/HatiCode/ecovision/cmd/dashboard/logger"
	"github.com/HatiCode/ecovision/cmd/dashboard/metrics"
	"github.com/HatiCode/ecovision/cmd/dashboard/router"
	"github.com/HatiCode/ecovision/pkg/adapters"
	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/charts"
	"github.com/HatiCode/ecovision/pkg/httpx"
	"github.com/HatiCode/ecovision/pkg/insights"
	"github.com/HatiCode/ecovision/pkg/pipeline"
	"github.com/HatiCode/ecovision/pkg/publisher"
	"github.com/HatiCode/ecovision/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting ecovision dashboard",
		"version", version,
		"model", cfg.Model,
		"cache", cfg.Cache,
		"source", cfg.Source,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	analyzer := pipeline.New(cfg.MaxRows, m, logger)

	cache, closeCache, err := newCache(cfg, logger)
	if err != nil {
		logger.Error("failed to create tips cache", "error", err)
		os.Exit(1)
	}
	defer closeCache()

	granularity, _ := aggregate.ParseGranularity(cfg.Granularity)
	modelOpts, _ := cfg.ModelOptions()
	defaults := pipeline.Options{
		Granularity: granularity,
		Periods:     cfg.Periods,
		Model:       modelOpts,
	}

	deps := router.Dependencies{
		Analyzer:     analyzer,
		Insights:     insights.NewClient(cfg.Insights(), cache, logger),
		Charts:       charts.New(),
		TipsMetrics:  m,
		Columns:      cfg.Columns(),
		Defaults:     defaults,
		MaxBodyBytes: cfg.MaxBodyBytes,
		StaleAfter:   2 * cfg.RefreshInterval,
	}
	if tariff, ok, _ := cfg.Tariff(); ok {
		deps.Tariff = &tariff
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Source != "" {
		watcher, closeSink, err := newWatcher(cfg, analyzer, defaults, logger)
		if err != nil {
			logger.Error("failed to configure source", "error", err)
			os.Exit(1)
		}
		defer closeSink()
		deps.Watcher = watcher

		go func() {
			if err := watcher.Run(ctx, cfg.RefreshInterval); err != nil && err != context.Canceled {
				logger.Error("source refresh loop failed", "error", err)
			}
		}()
	}

	mux := router.SetupRoutes(deps, logger)
	handler := httpx.Chain(mux,
		httpx.RequestIDMiddleware(),
		httpx.LoggingMiddleware(logger),
		httpx.RecoveryMiddleware(logger),
	)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)
	if cfg.TLS.Enabled {
		if err := httpServer.EnableTLS(cfg.TLS); err != nil {
			logger.Error("failed to configure TLS", "error", err)
			os.Exit(1)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newCache builds the tips cache selected by cfg.Cache. The returned func
// releases it.
func newCache(cfg *config.Config, logger *slog.Logger) (storage.Cache, func(), error) {
	switch cfg.Cache {
	case "redis":
		rc, err := storage.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis tips cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return rc, func() {
			if err := rc.Close(); err != nil {
				logger.Error("failed to close redis cache", "error", err)
			}
		}, nil
	case "none":
		return nil, func() {}, nil
	default:
		mc := storage.NewMemoryCacheWithTTL(cfg.CacheTTL, 10*time.Minute)
		return mc, mc.Stop, nil
	}
}

// newWatcher builds the source refresh loop and its optional MQTT sink.
func newWatcher(cfg *config.Config, analyzer *pipeline.Analyzer, opts pipeline.Options, logger *slog.Logger) (*pipeline.Watcher, func(), error) {
	src, err := adapters.New(cfg.Source, cfg.AdapterConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("source %q: %w", cfg.Source, err)
	}

	mqttCfg, ok := cfg.MQTT()
	if !ok {
		return pipeline.NewWatcher(src, analyzer, cfg.Columns(), opts, nil, logger), func() {}, nil
	}
	pub, err := publisher.New(mqttCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing source reports over MQTT", "broker", mqttCfg.Broker, "prefix", mqttCfg.TopicPrefix)
	return pipeline.NewWatcher(src, analyzer, cfg.Columns(), opts, pub, logger), pub.Close, nil
}
