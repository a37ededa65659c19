// Command reindex rebuilds the inverted index from the stored note values.
//
// A crash between a note write and its postings writes can leave the index
// out of step with the notes. This tool restores consistency: it re-derives
// every note's tokens and re-adds the missing postings, then sweeps the
// posting sets and removes members that no longer belong. Both passes are
// idempotent, so reindex is safe to run against a live store.
//
// Usage:
//
//	go run ./cmd/reindex [-config configs/development.yaml] [-workers 8] [-skip-prune]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/gitter-badger/ashaw-notes/internal/index/keyspace"
	"github.com/gitter-badger/ashaw-notes/internal/index/tokenizer"
	"github.com/gitter-badger/ashaw-notes/internal/store"
	"github.com/gitter-badger/ashaw-notes/pkg/config"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
	"github.com/gitter-badger/ashaw-notes/pkg/logger"
	pkgredis "github.com/gitter-badger/ashaw-notes/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	workers := flag.Int("workers", 8, "concurrent reindex workers")
	skipPrune := flag.Bool("skip-prune", false, "rebuild missing postings only, do not sweep stale ones")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	st := store.NewRedis(redisClient)

	if err := run(ctx, st, *workers, !*skipPrune); err != nil {
		slog.Error("reindex failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, st store.Store, workers int, prune bool) error {
	noteKeys, err := st.KeysMatching(ctx, keyspace.NotePattern)
	if err != nil {
		return fmt.Errorf("listing notes: %w", err)
	}
	slog.Info("rebuilding postings", "notes", len(noteKeys), "workers", workers)

	live := make(map[string]struct{}, len(noteKeys))
	var rebuilt atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range noteKeys {
		ts, err := keyspace.ParseNoteKey(key)
		if err != nil {
			return err
		}
		live[strconv.FormatInt(ts, 10)] = struct{}{}
		g.Go(func() error {
			text, err := st.GetValue(gctx, keyspace.NoteKey(ts))
			if err != nil {
				return fmt.Errorf("loading note %d: %w", ts, err)
			}
			member := strconv.FormatInt(ts, 10)
			var b store.Batch
			for _, token := range tokenizer.Tokenize(ts, text) {
				b.AddToSet(keyspace.WordKey(token), member)
			}
			if err := st.Apply(gctx, b); err != nil {
				return fmt.Errorf("reindexing note %d: %w", ts, err)
			}
			rebuilt.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("postings rebuilt", "notes", rebuilt.Load())

	if !prune {
		return nil
	}
	return pruneStale(ctx, st, workers, live)
}

// pruneStale sweeps every posting set and removes members whose note no
// longer exists or no longer tokenizes to the set's token.
func pruneStale(ctx context.Context, st store.Store, workers int, live map[string]struct{}) error {
	wordKeys, err := st.KeysMatching(ctx, keyspace.WordPattern)
	if err != nil {
		return fmt.Errorf("listing postings: %w", err)
	}
	slog.Info("sweeping stale postings", "tokens", len(wordKeys))

	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range wordKeys {
		token, err := keyspace.ParseWordKey(key)
		if err != nil {
			return err
		}
		g.Go(func() error {
			members, err := st.Union(gctx, keyspace.WordKey(token))
			if err != nil {
				return fmt.Errorf("reading posting %s: %w", token, err)
			}
			var b store.Batch
			for _, member := range members {
				stale, err := memberIsStale(gctx, st, token, member, live)
				if err != nil {
					return err
				}
				if stale {
					b.RemoveFromSet(keyspace.WordKey(token), member)
				}
			}
			if b.Len() == 0 {
				return nil
			}
			if err := st.Apply(gctx, b); err != nil {
				return fmt.Errorf("pruning posting %s: %w", token, err)
			}
			removed.Add(int64(b.Len()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("sweep complete", "postings_removed", removed.Load())
	return nil
}

func memberIsStale(ctx context.Context, st store.Store, token, member string, live map[string]struct{}) (bool, error) {
	if _, ok := live[member]; !ok {
		return true, nil
	}
	ts, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		// Not a timestamp at all; sweep it.
		return true, nil
	}
	text, err := st.GetValue(ctx, keyspace.NoteKey(ts))
	if errors.Is(err, apperrors.ErrKeyNotFound) {
		// Deleted since the rebuild pass.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading note %d: %w", ts, err)
	}
	for _, t := range tokenizer.Tokenize(ts, text) {
		if t == token {
			return false, nil
		}
	}
	return true, nil
}
