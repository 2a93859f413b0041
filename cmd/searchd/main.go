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
	"github.com/motomercado/search-platform/internal/engine"
	"github.com/motomercado/search-platform/internal/search/cache"
	"github.com/motomercado/search-platform/internal/search/handler"
	"github.com/motomercado/search-platform/pkg/config"
	"github.com/motomercado/search-platform/pkg/health"
	"github.com/motomercado/search-platform/pkg/kafka"
	"github.com/motomercado/search-platform/pkg/logger"
	"github.com/motomercado/search-platform/pkg/metrics"
	"github.com/motomercado/search-platform/pkg/middleware"
	"github.com/motomercado/search-platform/pkg/postgres"
	pkgredis "github.com/motomercado/search-platform/pkg/redis"
)

const statsSnapshotInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	m := metrics.New()
	eng := engine.NewEngine(cfg.Search)

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	var aggregator *analytics.Aggregator
	aggregator = analytics.NewAggregator(kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.AnalyticsEvents,
		func(ctx context.Context, key, value []byte) error {
			return analytics.HandleEvent(aggregator)(ctx, key, value)
		},
	))
	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()
	analyticsH := analytics.NewHandler(aggregator)

	var invalidations *kafka.Producer
	if queryCache != nil {
		invalidations = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
		defer invalidations.Close()
		invalidationConsumer := kafka.NewConsumer(
			cfg.Kafka,
			cfg.Kafka.Topics.CacheInvalidate,
			func(ctx context.Context, key, value []byte) error {
				msg, err := kafka.DecodeJSON[handler.InvalidationMessage](value)
				if err != nil {
					slog.Error("failed to decode invalidation message", "error", err)
					return nil
				}
				return queryCache.Invalidate(ctx, msg.Index)
			},
		)
		go func() {
			if err := invalidationConsumer.Start(ctx); err != nil {
				slog.Error("cache invalidation consumer error", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.CacheInvalidate)
	}

	var pgClient *postgres.Client
	pgClient, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		pgClient = nil
	} else {
		defer pgClient.Close()
		statsStore := analytics.NewStore(pgClient)
		if err := statsStore.Migrate(ctx); err != nil {
			slog.Error("analytics store migration failed", "error", err)
			os.Exit(1)
		}
		if prev, err := statsStore.LatestSnapshot(ctx); err != nil {
			slog.Warn("failed to load previous analytics snapshot", "error", err)
		} else if prev != nil {
			slog.Info("previous analytics snapshot found, counters restart cold",
				"total_searches", prev.TotalSearches,
			)
		}
		statsStore.StartPeriodicSave(ctx, aggregator, statsSnapshotInterval)
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d indices", len(eng.Indices())),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
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

	h := handler.New(eng, queryCache, collector, invalidations, m)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	h.Register(api)
	api.HandleFunc("/analytics", analyticsH.Stats).Methods(http.MethodGet)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
