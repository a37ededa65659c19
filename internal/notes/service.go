package notes

import (
	"context"
	"log/slog"
	"time"

	"github.com/gitter-badger/ashaw-notes/internal/feed"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
	"github.com/gitter-badger/ashaw-notes/pkg/logger"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
)

// SearchCache is the slice of the search cache the service needs: any
// mutation invalidates every cached search result.
type SearchCache interface {
	Invalidate(ctx context.Context) error
}

// EventSink receives note lifecycle events. Publishing must not block.
type EventSink interface {
	Publish(event feed.Event)
}

// Service coordinates note mutations: per-timestamp locking, repository
// writes, cache invalidation and the event feed. Cache and sink may be nil
// when those subsystems are disabled.
type Service struct {
	repo    *Repository
	cache   SearchCache
	sink    EventSink
	metrics *metrics.Metrics
	enabled bool
	locks   timestampLocks
	logger  *slog.Logger
}

func NewService(repo *Repository, cache SearchCache, sink EventSink, m *metrics.Metrics, enabled bool) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		sink:    sink,
		metrics: m,
		enabled: enabled,
		logger:  slog.Default().With("component", "notes-service"),
	}
}

// Enabled reports whether a note backend is configured. Operations on a
// disabled service fail with ErrBackendDisabled.
func (s *Service) Enabled() bool {
	return s.enabled
}

func (s *Service) Save(ctx context.Context, n Note) error {
	if !s.enabled {
		return apperrors.ErrBackendDisabled
	}
	mu := s.locks.forTimestamp(n.Timestamp)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.Save(ctx, n); err != nil {
		return err
	}
	s.metrics.NotesSavedTotal.Inc()
	s.afterMutation(ctx, feed.Event{
		Type:      feed.EventNoteSaved,
		Timestamp: n.Timestamp,
		Text:      n.Text,
		RequestID: logger.RequestIDFromContext(ctx),
		EmittedAt: time.Now().UTC(),
	})
	return nil
}

// Update replaces the note at originalTimestamp with n, which may carry a
// different timestamp. When the note moves onto an already occupied
// timestamp the occupant is deleted first, keeping the index consistent.
func (s *Service) Update(ctx context.Context, originalTimestamp int64, n Note) error {
	if !s.enabled {
		return apperrors.ErrBackendDisabled
	}
	unlock := s.locks.lockBoth(originalTimestamp, n.Timestamp)
	defer unlock()

	if n.Timestamp != originalTimestamp {
		if _, err := s.repo.Delete(ctx, n.Timestamp); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, originalTimestamp, n); err != nil {
		return err
	}
	s.metrics.NotesUpdatedTotal.Inc()
	s.afterMutation(ctx, feed.Event{
		Type:         feed.EventNoteUpdated,
		Timestamp:    n.Timestamp,
		OldTimestamp: originalTimestamp,
		Text:         n.Text,
		RequestID:    logger.RequestIDFromContext(ctx),
		EmittedAt:    time.Now().UTC(),
	})
	return nil
}

// Delete removes a note. Deleting a missing note succeeds without emitting an
// event.
func (s *Service) Delete(ctx context.Context, timestamp int64) error {
	if !s.enabled {
		return apperrors.ErrBackendDisabled
	}
	mu := s.locks.forTimestamp(timestamp)
	mu.Lock()
	defer mu.Unlock()

	deleted, err := s.repo.Delete(ctx, timestamp)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	s.metrics.NotesDeletedTotal.Inc()
	s.afterMutation(ctx, feed.Event{
		Type:      feed.EventNoteDeleted,
		Timestamp: timestamp,
		RequestID: logger.RequestIDFromContext(ctx),
		EmittedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Service) Get(ctx context.Context, timestamp int64) (Note, error) {
	if !s.enabled {
		return Note{}, apperrors.ErrBackendDisabled
	}
	return s.repo.Get(ctx, timestamp)
}

func (s *Service) CommonWords(ctx context.Context) ([]string, error) {
	if !s.enabled {
		return nil, apperrors.ErrBackendDisabled
	}
	return s.repo.CommonWords(ctx)
}

func (s *Service) afterMutation(ctx context.Context, event feed.Event) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("search cache invalidation failed", "error", err)
		}
	}
	if s.sink != nil {
		s.sink.Publish(event)
	}
}
