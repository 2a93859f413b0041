package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/motomercado/search-platform/internal/analytics"
	"github.com/motomercado/search-platform/internal/recommend"
	"github.com/motomercado/search-platform/internal/recs/consumer"
	"github.com/motomercado/search-platform/internal/recs/handler"
	"github.com/motomercado/search-platform/pkg/config"
	"github.com/motomercado/search-platform/pkg/health"
	"github.com/motomercado/search-platform/pkg/kafka"
	"github.com/motomercado/search-platform/pkg/logger"
	"github.com/motomercado/search-platform/pkg/metrics"
	"github.com/motomercado/search-platform/pkg/middleware"
	"github.com/motomercado/search-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting recommendation service", "port", cfg.Server.Port)

	m := metrics.New()
	rec := recommend.NewRecommender(cfg.Recommend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snapshots *recommend.SnapshotStore
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, model snapshots disabled", "error", err)
		pgClient = nil
	} else {
		defer pgClient.Close()
		snapshots = recommend.NewSnapshotStore(pgClient)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Error("snapshot store migration failed", "error", err)
			os.Exit(1)
		}
		snap, err := snapshots.LoadLatest(ctx)
		if err != nil {
			slog.Warn("failed to load model snapshot, starting cold", "error", err)
		} else if snap != nil {
			rec.ImportModel(snap)
			slog.Info("model restored from snapshot", "products", len(snap.Products))
		}
		startPeriodicSnapshots(ctx, rec, snapshots, m, cfg.Recommend.SnapshotInterval)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()

	trackingConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.TrackingEvents,
		consumer.HandleTrackingEvent(rec),
	)
	go func() {
		if err := trackingConsumer.Start(ctx); err != nil {
			slog.Error("tracking consumer error", "error", err)
		}
	}()
	slog.Info("tracking consumer started", "topic", cfg.Kafka.Topics.TrackingEvents)

	checker := health.NewChecker()
	checker.Register("recommender", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(rec, snapshots, collector, m)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	h.Register(api)
	router.HandleFunc("/health/live", checker.LiveHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.ReadyHandler()).Methods(http.MethodGet)

	router.Use(middleware.RequestID)
	router.Use(middleware.Metrics(m))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("recommendation service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("recommendation service stopped")
}

// startPeriodicSnapshots saves the model on a fixed interval, plus a final
// snapshot on shutdown so restarts lose at most one interval of signals.
func startPeriodicSnapshots(ctx context.Context, rec *recommend.Recommender, store *recommend.SnapshotStore, m *metrics.Metrics, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				saveSnapshot(ctx, rec, store, m)
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				saveSnapshot(shutdownCtx, rec, store, m)
				cancel()
				return
			}
		}
	}()
	slog.Info("periodic model snapshots started", "interval", interval)
}

const keptSnapshots = 10

func saveSnapshot(ctx context.Context, rec *recommend.Recommender, store *recommend.SnapshotStore, m *metrics.Metrics) {
	if err := store.Save(ctx, rec.ExportModel()); err != nil {
		m.ModelSnapshotsTotal.WithLabelValues("error").Inc()
		slog.Error("model snapshot failed", "error", err)
		return
	}
	m.ModelSnapshotsTotal.WithLabelValues("ok").Inc()
	if err := store.Prune(ctx, keptSnapshots); err != nil {
		slog.Warn("snapshot prune failed", "error", err)
	}
}
