// Package cache memoises search results in Redis. Entries are keyed by a
// hash of the normalised query, expire on a TTL, and are flushed wholesale
// whenever a note changes. Concurrent misses for the same query are collapsed
// with singleflight so the index is only hit once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitter-badger/ashaw-notes/internal/notes"
	"github.com/gitter-badger/ashaw-notes/internal/search/parser"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	pkgredis "github.com/gitter-badger/ashaw-notes/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the slice of the Redis client the cache needs. Get reports a
// missing key with redis.Nil.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached results for q, if present.
func (c *QueryCache) Get(ctx context.Context, q *parser.Query) ([]notes.Note, bool) {
	key := c.buildKey(q)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []notes.Note
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if results == nil {
		results = []notes.Note{}
	}
	c.hits.Add(1)
	c.metrics.CacheHitsTotal.Inc()
	return results, true
}

// Set stores the results for q. Failures are logged, not returned: the cache
// is an optimisation, never a source of truth.
func (c *QueryCache) Set(ctx context.Context, q *parser.Query, results []notes.Note) {
	key := c.buildKey(q)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or runs computeFn once for all
// concurrent callers with the same query. The bool reports whether the
// result came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q *parser.Query,
	computeFn func() ([]notes.Note, error),
) ([]notes.Note, bool, error) {
	if results, ok := c.Get(ctx, q); ok {
		return results, true, nil
	}
	key := c.buildKey(q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, q); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]notes.Note), false, nil
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("search cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns lifetime hit and miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()
}

// buildKey hashes the normalised term sets so semantically equal queries
// share an entry regardless of term order or raw spelling.
func (c *QueryCache) buildKey(q *parser.Query) string {
	terms := append([]string(nil), q.Terms...)
	excludes := append([]string(nil), q.ExcludeTerms...)
	sort.Strings(terms)
	sort.Strings(excludes)
	raw := strings.Join(terms, ",") + "|NOT:" + strings.Join(excludes, ",")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
