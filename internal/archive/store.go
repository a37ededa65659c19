// Package archive persists the note-event feed to PostgreSQL: an append-only
// journal of every event plus the folded latest state of each note. The
// archive is a downstream copy; the Redis index stays the source of truth.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gitter-badger/ashaw-notes/internal/feed"
	"github.com/gitter-badger/ashaw-notes/pkg/postgres"
)

// Store writes feed events to PostgreSQL.
//
// It requires two tables (see EnsureSchema):
//
//	CREATE TABLE note_events (
//	    id          BIGSERIAL PRIMARY KEY,
//	    event_type  TEXT NOT NULL,
//	    data        JSONB NOT NULL,
//	    emitted_at  TIMESTAMPTZ NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE notes_archive (
//	    note_ts    BIGINT PRIMARY KEY,
//	    text       TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    deleted_at TIMESTAMPTZ
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "archive-store"),
	}
}

// EnsureSchema creates the archive tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS note_events (
			id          BIGSERIAL PRIMARY KEY,
			event_type  TEXT NOT NULL,
			data        JSONB NOT NULL,
			emitted_at  TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notes_archive (
			note_ts    BIGINT PRIMARY KEY,
			text       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating archive schema: %w", err)
		}
	}
	return nil
}

// Record journals the event and folds it into the notes archive in one
// transaction, so the journal and the folded state cannot drift apart.
func (s *Store) Record(ctx context.Context, event feed.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	emittedAt := event.EmittedAt
	if emittedAt.IsZero() {
		emittedAt = time.Now().UTC()
	}

	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO note_events (event_type, data, emitted_at) VALUES ($1, $2, $3)`,
			string(event.Type), data, emittedAt,
		); err != nil {
			return fmt.Errorf("journaling event: %w", err)
		}

		switch event.Type {
		case feed.EventNoteSaved, feed.EventNoteUpdated:
			// An update that moved the note leaves the old timestamp
			// behind; it is recorded as deleted.
			if event.Type == feed.EventNoteUpdated &&
				event.OldTimestamp != 0 && event.OldTimestamp != event.Timestamp {
				if _, err := tx.ExecContext(ctx,
					`UPDATE notes_archive SET deleted_at = $2 WHERE note_ts = $1`,
					event.OldTimestamp, emittedAt,
				); err != nil {
					return fmt.Errorf("retiring moved note %d: %w", event.OldTimestamp, err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO notes_archive (note_ts, text, updated_at)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (note_ts) DO UPDATE
				 SET text = EXCLUDED.text, updated_at = EXCLUDED.updated_at, deleted_at = NULL`,
				event.Timestamp, event.Text, emittedAt,
			); err != nil {
				return fmt.Errorf("folding note %d: %w", event.Timestamp, err)
			}
		case feed.EventNoteDeleted:
			if _, err := tx.ExecContext(ctx,
				`UPDATE notes_archive SET deleted_at = $2 WHERE note_ts = $1`,
				event.Timestamp, emittedAt,
			); err != nil {
				return fmt.Errorf("marking note %d deleted: %w", event.Timestamp, err)
			}
		}
		return nil
	})
}

// ArchivedNote is a note's folded state in the archive.
type ArchivedNote struct {
	Timestamp int64      `json:"timestamp"`
	Text      string     `json:"text"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Note loads a single archived note. Returns nil when the note never reached
// the archive.
func (s *Store) Note(ctx context.Context, timestamp int64) (*ArchivedNote, error) {
	var n ArchivedNote
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT note_ts, text, updated_at, deleted_at FROM notes_archive WHERE note_ts = $1`,
		timestamp,
	).Scan(&n.Timestamp, &n.Text, &n.UpdatedAt, &n.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying archived note %d: %w", timestamp, err)
	}
	return &n, nil
}

// RecentEvents returns the last N journaled events, newest first. Rows whose
// payload no longer unmarshals are skipped with a warning.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]feed.Event, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM note_events ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []feed.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		var event feed.Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("skipping corrupt event row", "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
