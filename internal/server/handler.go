// Package server exposes the note service over HTTP. Routes are assembled by
// the caller; this package provides the handlers and their JSON surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gitter-badger/ashaw-notes/internal/feed"
	"github.com/gitter-badger/ashaw-notes/internal/notes"
	"github.com/gitter-badger/ashaw-notes/internal/search/cache"
	"github.com/gitter-badger/ashaw-notes/internal/search/parser"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
	"github.com/gitter-badger/ashaw-notes/pkg/logger"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	"github.com/gitter-badger/ashaw-notes/pkg/middleware"
)

// SearchResolver executes a parsed query against the note index.
type SearchResolver interface {
	Search(ctx context.Context, q *parser.Query) ([]notes.Note, error)
}

// eventSink receives search events. Publishing must not block.
type eventSink interface {
	Publish(event feed.Event)
}

// Handler serves the note and search API. Cache and sink may be nil when
// those subsystems are disabled.
type Handler struct {
	service    *notes.Service
	resolver   SearchResolver
	cache      *cache.QueryCache
	sink       eventSink
	metrics    *metrics.Metrics
	maxResults int
	logger     *slog.Logger
}

// New builds the handler. maxResults caps the search limit parameter; zero
// leaves limits uncapped.
func New(service *notes.Service, resolver SearchResolver, queryCache *cache.QueryCache, sink eventSink, m *metrics.Metrics, maxResults int) *Handler {
	return &Handler{
		service:    service,
		resolver:   resolver,
		cache:      queryCache,
		sink:       sink,
		metrics:    m,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "http-handler"),
	}
}

// Routes registers every API route on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/notes", h.SaveNote)
	mux.HandleFunc("GET /api/v1/notes/{timestamp}", h.GetNote)
	mux.HandleFunc("PUT /api/v1/notes/{timestamp}", h.UpdateNote)
	mux.HandleFunc("DELETE /api/v1/notes/{timestamp}", h.DeleteNote)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/words", h.Words)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type saveNoteRequest struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

type updateNoteRequest struct {
	Text string `json:"text"`
	// Timestamp, when non-zero, moves the note to a new identity.
	Timestamp int64 `json:"timestamp"`
}

type searchResponse struct {
	Query   string       `json:"query"`
	Count   int          `json:"count"`
	Results []notes.Note `json:"results"`
}

// SaveNote handles POST /api/v1/notes. A zero or absent timestamp means
// "now".
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req saveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().Unix()
	}

	n := notes.Note{Timestamp: req.Timestamp, Text: req.Text}
	if err := h.service.Save(r.Context(), n); err != nil {
		h.writeDomainError(w, log, err, "saving note failed")
		return
	}
	log.Info("note saved", "timestamp", n.Timestamp, "text_len", len(n.Text))
	h.writeJSON(w, http.StatusCreated, n)
}

// GetNote handles GET /api/v1/notes/{timestamp}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	ts, ok := h.pathTimestamp(w, r)
	if !ok {
		return
	}
	n, err := h.service.Get(r.Context(), ts)
	if err != nil {
		h.writeDomainError(w, log, err, "loading note failed")
		return
	}
	h.writeJSON(w, http.StatusOK, n)
}

// UpdateNote handles PUT /api/v1/notes/{timestamp}. The path timestamp names
// the note being replaced; a non-zero timestamp in the body moves the note.
// Updating a missing note creates it.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	ts, ok := h.pathTimestamp(w, r)
	if !ok {
		return
	}
	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Timestamp == 0 {
		req.Timestamp = ts
	}

	n := notes.Note{Timestamp: req.Timestamp, Text: req.Text}
	if err := h.service.Update(r.Context(), ts, n); err != nil {
		h.writeDomainError(w, log, err, "updating note failed")
		return
	}
	log.Info("note updated", "timestamp", ts, "new_timestamp", n.Timestamp)
	h.writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/v1/notes/{timestamp}. Deleting a missing
// note is a success.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	ts, ok := h.pathTimestamp(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), ts); err != nil {
		h.writeDomainError(w, log, err, "deleting note failed")
		return
	}
	log.Info("note deleted", "timestamp", ts)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/v1/search. An empty query matches every note. An
// optional limit parameter truncates the response; resolution and caching
// always cover the full match set.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if !h.service.Enabled() {
		h.writeError(w, http.StatusNotImplemented, apperrors.ErrBackendDisabled.Error())
		return
	}

	limit, ok := h.searchLimit(w, r)
	if !ok {
		return
	}
	rawQuery := r.URL.Query().Get("q")
	query := parser.Parse(rawQuery)

	var results []notes.Note
	var err error
	cacheHit := false
	if h.cache != nil {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, query, func() ([]notes.Note, error) {
			return h.resolver.Search(ctx, query)
		})
	} else {
		results, err = h.resolver.Search(ctx, query)
	}
	if err != nil {
		h.metrics.SearchesTotal.WithLabelValues("error").Inc()
		h.writeDomainError(w, log, err, "search failed")
		return
	}

	latency := time.Since(start)
	resultType := "ok"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.SearchesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(results)))

	log.Info("search completed",
		"query", rawQuery,
		"matches", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.sink != nil {
		h.sink.Publish(feed.Event{
			Type:      feed.EventSearch,
			Query:     rawQuery,
			Hits:      len(results),
			RequestID: middleware.GetRequestID(ctx),
			EmittedAt: time.Now().UTC(),
		})
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:   rawQuery,
		Count:   len(results),
		Results: results,
	})
}

// searchLimit parses the optional limit query parameter, capped by the
// configured maximum. Zero means no limit was requested.
func (h *Handler) searchLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, true
}

// Words handles GET /api/v1/words.
func (h *Handler) Words(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	words, err := h.service.CommonWords(r.Context())
	if err != nil {
		h.writeDomainError(w, log, err, "listing words failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(words),
		"words": words,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) pathTimestamp(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ts, err := strconv.ParseInt(r.PathValue("timestamp"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "timestamp must be an integer")
		return 0, false
	}
	return ts, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, log *slog.Logger, err error, message string) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error(message, "error", err)
		h.writeError(w, status, message)
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
