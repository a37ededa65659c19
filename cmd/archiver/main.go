// Command archiver starts the note archive service.
//
// It consumes note lifecycle events from Kafka and mirrors them into
// PostgreSQL: an append-only event journal plus the folded latest state of
// each note. A small HTTP API exposes health and the most recent events.
//
// Usage:
//
//	go run ./cmd/archiver [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gitter-badger/ashaw-notes/internal/archive"
	"github.com/gitter-badger/ashaw-notes/pkg/config"
	"github.com/gitter-badger/ashaw-notes/pkg/health"
	"github.com/gitter-badger/ashaw-notes/pkg/kafka"
	"github.com/gitter-badger/ashaw-notes/pkg/logger"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	"github.com/gitter-badger/ashaw-notes/pkg/middleware"
	"github.com/gitter-badger/ashaw-notes/pkg/postgres"
	"github.com/gitter-badger/ashaw-notes/pkg/resilience"
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
	slog.Info("starting archiver",
		"topic", cfg.Kafka.Topics.NoteEvents,
		"database", cfg.Postgres.Database,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	archiveStore := archive.NewStore(db)
	if err := archiveStore.EnsureSchema(ctx); err != nil {
		slog.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	handler := archive.HandleEvent(archiveStore, m, resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}, 10*time.Second)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.NoteEvents, handler)
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("archive consumer started", "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/archive/events", recentEventsHandler(archiveStore))
	mux.HandleFunc("GET /api/v1/archive/notes/{timestamp}", archivedNoteHandler(archiveStore))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
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

	slog.Info("archiver listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("archiver stopped")
}

func recentEventsHandler(s *archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		events, err := s.RecentEvents(r.Context(), limit)
		if err != nil {
			slog.Error("listing events failed", "error", err)
			http.Error(w, `{"error":"listing events failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"count": len(events), "events": events})
	}
}

func archivedNoteHandler(s *archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := strconv.ParseInt(r.PathValue("timestamp"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"timestamp must be an integer"}`, http.StatusBadRequest)
			return
		}
		note, err := s.Note(r.Context(), ts)
		if err != nil {
			slog.Error("loading archived note failed", "error", err)
			http.Error(w, `{"error":"loading archived note failed"}`, http.StatusInternalServerError)
			return
		}
		if note == nil {
			http.Error(w, `{"error":"note not archived"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, note)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
