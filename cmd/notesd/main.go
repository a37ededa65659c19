// Command notesd starts the note service.
//
// It serves the note and search HTTP API backed by the Redis inverted index,
// publishes note lifecycle events to Kafka for downstream consumers, and
// exposes Prometheus metrics on a separate port.
//
// Usage:
//
//	go run ./cmd/notesd [-config configs/development.yaml]
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

	_ "github.com/joho/godotenv/autoload"

	"github.com/gitter-badger/ashaw-notes/internal/feed"
	"github.com/gitter-badger/ashaw-notes/internal/notes"
	"github.com/gitter-badger/ashaw-notes/internal/search/cache"
	"github.com/gitter-badger/ashaw-notes/internal/search/resolver"
	"github.com/gitter-badger/ashaw-notes/internal/server"
	"github.com/gitter-badger/ashaw-notes/internal/store"
	"github.com/gitter-badger/ashaw-notes/pkg/config"
	"github.com/gitter-badger/ashaw-notes/pkg/health"
	"github.com/gitter-badger/ashaw-notes/pkg/kafka"
	"github.com/gitter-badger/ashaw-notes/pkg/logger"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	"github.com/gitter-badger/ashaw-notes/pkg/middleware"
	pkgredis "github.com/gitter-badger/ashaw-notes/pkg/redis"
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
	slog.Info("starting note service", "port", cfg.Server.Port, "backends", cfg.Backends)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	redisEnabled := cfg.BackendEnabled("redis")
	var redisClient *pkgredis.Client
	var noteStore store.Store
	if redisEnabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		noteStore = store.NewRedis(redisClient)
		slog.Info("note index on redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	} else if cfg.BackendEnabled("memory") {
		noteStore = store.NewMemory()
		slog.Warn("note index on in-memory store, data will not survive restarts")
	} else {
		// No usable backend: serve the API in disabled mode so health
		// and metrics still answer.
		noteStore = store.NewMemory()
		slog.Warn("no note backend enabled", "backends", cfg.Backends)
	}
	enabled := redisEnabled || cfg.BackendEnabled("memory")

	var queryCache *cache.QueryCache
	if redisClient != nil && cfg.Redis.CacheTTL > 0 {
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	var publisher *feed.Publisher
	if cfg.Feed.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.NoteEvents)
		defer producer.Close()
		publisher = feed.NewPublisher(producer, cfg.Feed.BufferSize, m)
		publisher.Start(ctx)
		defer publisher.Close()
		slog.Info("note-event feed started", "topic", cfg.Kafka.Topics.NoteEvents)
	}

	repo := notes.NewRepository(noteStore)
	// The interface slices of nilable collaborators have to stay nil when
	// the collaborator is absent.
	svc := notes.NewService(repo, nilableCache(queryCache), nilableSink(publisher), m, enabled)
	res := resolver.New(noteStore)
	h := server.New(svc, res, queryCache, nilableSink(publisher), m, cfg.Search.MaxResults)

	checker := health.NewChecker()
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("feed", func(ctx context.Context) health.ComponentHealth {
		if publisher == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "disabled"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("note service listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("note service stopped")
}

// nilableCache converts a possibly-nil *cache.QueryCache into the service's
// interface without producing a non-nil interface around a nil pointer.
func nilableCache(c *cache.QueryCache) notes.SearchCache {
	if c == nil {
		return nil
	}
	return c
}

// nilableSink does the same for the feed publisher.
func nilableSink(p *feed.Publisher) notes.EventSink {
	if p == nil {
		return nil
	}
	return p
}
