package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shipops/docsearch/internal/analytics"
	"github.com/shipops/docsearch/internal/api"
	"github.com/shipops/docsearch/internal/extract"
	"github.com/shipops/docsearch/internal/identity"
	"github.com/shipops/docsearch/internal/pipeline"
	"github.com/shipops/docsearch/internal/searchindex"
	"github.com/shipops/docsearch/internal/source"
	"github.com/shipops/docsearch/pkg/config"
	"github.com/shipops/docsearch/pkg/health"
	"github.com/shipops/docsearch/pkg/kafka"
	"github.com/shipops/docsearch/pkg/logger"
	"github.com/shipops/docsearch/pkg/metrics"
	"github.com/shipops/docsearch/pkg/middleware"
	"github.com/shipops/docsearch/pkg/postgres"
	pkgredis "github.com/shipops/docsearch/pkg/redis"
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
	slog.Info("starting document search service", "port", cfg.Server.Port, "tables", cfg.Source.TableNames())

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to source store", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	gateway := source.NewPostgresGateway(pg, cfg.Source)

	indexPath := filepath.Join(cfg.Indexing.DataDir, cfg.Indexing.IndexName)
	index, err := searchindex.New(indexPath, cfg.Search)
	if err != nil {
		slog.Error("failed to open search index", "error", err, "path", indexPath)
		os.Exit(1)
	}
	defer index.Close()
	slog.Info("search index opened", "path", indexPath)

	var queryCache *api.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache = api.NewQueryCache(redisClient, cfg.Redis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()

	m := metrics.New()
	codec := identity.NewCodec(cfg.Source.TableNames())
	dispatcher := extract.NewDispatcher(cfg.Indexing.MaxTextLength)
	runner := pipeline.NewRunner(gateway, index, dispatcher, codec, cfg.Indexing, m)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := gateway.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("search_index", func(ctx context.Context) health.ComponentHealth {
		count, err := index.Count()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", count)}
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

	h := api.NewHandler(index, runner, gateway, codec, queryCache, collector, m, cfg.Search)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
		// Indexing runs block the request until completion, so the
		// write timeout must outlast a full run.
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
	}()

	slog.Info("document search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("document search service stopped")
}
