package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelstack/sentinel-engine/internal/api"
	"github.com/sentinelstack/sentinel-engine/internal/cache"
	"github.com/sentinelstack/sentinel-engine/internal/config"
	"github.com/sentinelstack/sentinel-engine/internal/dispatch"
	"github.com/sentinelstack/sentinel-engine/internal/metrics"
	"github.com/sentinelstack/sentinel-engine/internal/patterns"
	"github.com/sentinelstack/sentinel-engine/internal/recovery"
	"github.com/sentinelstack/sentinel-engine/internal/scheduler"
	"github.com/sentinelstack/sentinel-engine/internal/security"
	"github.com/sentinelstack/sentinel-engine/internal/store"
	"github.com/sentinelstack/sentinel-engine/internal/tracker"
	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting sentinel-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var blocks security.BlockStore = security.NewMemoryBlockList(time.Hour)
	if cfg.BlockStore.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.BlockStore.Addr,
			Username:     cfg.BlockStore.Username,
			Password:     cfg.BlockStore.Password,
			DB:           cfg.BlockStore.DB,
			DialTimeout:  cfg.BlockStore.DialTimeout,
			ReadTimeout:  cfg.BlockStore.ReadTimeout,
			WriteTimeout: cfg.BlockStore.WriteTimeout,
			TLS:          cfg.BlockStore.TLS,
		})
		if err != nil {
			logger.Warn("shared block store unavailable, using in-process list", slog.Any("error", err))
		} else {
			blocks = security.NewSharedBlockStore(provider)
			defer provider.Close()
		}
	}

	webhook := dispatch.NewWebhookClient(logger, dispatch.WebhookConfig{
		ErrorSinkURL:            cfg.Sinks.ErrorSinkURL,
		CriticalWebhookURL:      cfg.Sinks.CriticalWebhookURL,
		SecurityAlertWebhookURL: cfg.Sinks.SecurityAlertWebhookURL,
		IncidentWebhookURL:      cfg.Sinks.IncidentWebhookURL,
		Timeout:                 cfg.Sinks.Timeout,
		Environment:             cfg.Sinks.Environment,
		Deployment:              cfg.Sinks.Deployment,
	})

	alertSinks := []dispatch.AlertSink{webhook}
	if cfg.Nats.URL != "" {
		conn, err := nats.Connect(cfg.Nats.URL, nats.Name("sentinel-engine"))
		if err != nil {
			logger.Warn("nats unavailable, alerts go to webhooks only", slog.Any("error", err))
		} else {
			defer conn.Drain()
			alertSinks = append(alertSinks, dispatch.NewNatsPublisher(logger, conn, cfg.Nats.SubjectPrefix))
		}
	}

	dispatcher := dispatch.NewDispatcher(logger, cfg.Dispatch.BatchSize, webhook, alertSinks...)

	events := store.NewEventStore(logger, dispatcher)

	rules, err := patterns.LoadSuggestionRules(cfg.Rules.SuggestionsPath)
	if err != nil {
		logger.Error("failed to load suggestion rules", slog.Any("error", err))
		os.Exit(1)
	}
	patternDetector := patterns.NewDetector(logger, cfg.Detection.PatternThreshold, rules)

	recoveryEngine := recovery.NewEngine(logger)

	mitigator := security.NewMitigator(logger, blocks)
	monitor := security.NewMonitor(logger, security.MonitorConfig{
		IncidentWindow:     cfg.Detection.IncidentWindow,
		IncidentMinThreats: cfg.Detection.IncidentMinThreats,
		ScoreWindow:        cfg.Detection.ScoreWindow,
	}, mitigator, dispatcher)

	trk := tracker.New(logger, events, patternDetector, recoveryEngine, dispatcher, monitor)

	requestDetector := security.NewDetector(logger, monitor, security.DetectorConfig{
		RateWindow:    cfg.Detection.RateWindow,
		RateThreshold: cfg.Detection.RateThreshold,
	})
	authTracker := security.NewAuthTracker(logger, monitor, security.AuthConfig{
		FailThreshold: cfg.Detection.AuthFailThreshold,
		HighThreshold: cfg.Detection.AuthHighThreshold,
	})

	handlers := api.NewHandlers(logger, trk, monitor, requestDetector, authTracker)
	server := api.NewServer(cfg.Server, handlers)

	sched := scheduler.New(logger,
		scheduler.Task{
			Name:     "dispatch-flush",
			Interval: cfg.Scheduler.FlushInterval,
			Run:      dispatcher.Flush,
		},
		scheduler.Task{
			Name:     "rate-window-sweep",
			Interval: cfg.Scheduler.SweepInterval,
			Run:      func(context.Context) { requestDetector.Sweep() },
		},
		scheduler.Task{
			Name:     "security-metrics",
			Interval: cfg.Scheduler.MetricsInterval,
			Run:      func(context.Context) { monitor.Metrics() },
		},
		scheduler.Task{
			Name:     "incident-check",
			Interval: cfg.Scheduler.IncidentCheckInterval,
			Run:      func(context.Context) { monitor.CheckIncidents() },
		},
	)
	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	sched.Stop()

	// Final flush so queued records are not lost on shutdown.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	dispatcher.Flush(flushCtx)
	cancelFlush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("sentinel-engine stopped")
}
