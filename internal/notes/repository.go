package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/gitter-badger/ashaw-notes/internal/index/keyspace"
	"github.com/gitter-badger/ashaw-notes/internal/index/tokenizer"
	"github.com/gitter-badger/ashaw-notes/internal/store"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

// Repository persists notes and keeps the inverted index consistent with the
// stored text. Every mutation goes through a single Apply so the value and its
// postings change together.
type Repository struct {
	store  store.Store
	logger *slog.Logger
}

func NewRepository(s store.Store) *Repository {
	return &Repository{
		store:  s,
		logger: slog.Default().With("component", "notes-repository"),
	}
}

// Save stores the note text and adds the note's timestamp to the postings set
// of every token. Saving over an existing timestamp replaces the text and adds
// the new text's postings; postings from the replaced text are left in place.
func (r *Repository) Save(ctx context.Context, n Note) error {
	key := keyspace.NoteKey(n.Timestamp)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("checking note %d: %w", n.Timestamp, err)
	}
	if exists {
		r.logger.Warn("overwriting existing note", "timestamp", n.Timestamp)
	}

	member := strconv.FormatInt(n.Timestamp, 10)
	var b store.Batch
	for _, token := range tokenizer.Tokenize(n.Timestamp, n.Text) {
		b.AddToSet(keyspace.WordKey(token), member)
	}
	b.SetValue(key, n.Text)
	if err := r.store.Apply(ctx, b); err != nil {
		return fmt.Errorf("saving note %d: %w", n.Timestamp, err)
	}
	return nil
}

// Get loads a single note by timestamp. A stored body that is not valid
// UTF-8 is a corruption error, not a result.
func (r *Repository) Get(ctx context.Context, timestamp int64) (Note, error) {
	text, err := r.store.GetValue(ctx, keyspace.NoteKey(timestamp))
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyNotFound) {
			return Note{}, fmt.Errorf("%w: %d", apperrors.ErrNoteNotFound, timestamp)
		}
		return Note{}, fmt.Errorf("loading note %d: %w", timestamp, err)
	}
	if !utf8.ValidString(text) {
		return Note{}, fmt.Errorf("%w: note %d body is not valid UTF-8", apperrors.ErrValueCorrupt, timestamp)
	}
	return Note{Timestamp: timestamp, Text: text}, nil
}

// Delete removes the note and its postings. The token set is recomputed from
// the stored text rather than trusted from the caller, so the index cannot be
// left pointing at a deleted note. Deleting a missing timestamp reports
// deleted=false and no error.
func (r *Repository) Delete(ctx context.Context, timestamp int64) (bool, error) {
	key := keyspace.NoteKey(timestamp)
	text, err := r.store.GetValue(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyNotFound) {
			r.logger.Debug("delete of missing note is a no-op", "timestamp", timestamp)
			return false, nil
		}
		return false, fmt.Errorf("loading note %d for delete: %w", timestamp, err)
	}

	member := strconv.FormatInt(timestamp, 10)
	var b store.Batch
	for _, token := range tokenizer.Tokenize(timestamp, text) {
		b.RemoveFromSet(keyspace.WordKey(token), member)
	}
	b.Del(key)
	if err := r.store.Apply(ctx, b); err != nil {
		return false, fmt.Errorf("deleting note %d: %w", timestamp, err)
	}
	return true, nil
}

// Update replaces the note at originalTimestamp with n, removing the old
// text's postings first so no stale tokens survive. The new note may live at
// a different timestamp; updating a missing timestamp degenerates to Save.
// The delete and the save are separate batches, so a same-timestamp update is
// transiently absent between them.
func (r *Repository) Update(ctx context.Context, originalTimestamp int64, n Note) error {
	if _, err := r.Delete(ctx, originalTimestamp); err != nil {
		return err
	}
	return r.Save(ctx, n)
}

// CommonWords returns every token that currently has at least one posting,
// sorted. Tags keep their leading # and temporal tokens are included.
func (r *Repository) CommonWords(ctx context.Context) ([]string, error) {
	keys, err := r.store.KeysMatching(ctx, keyspace.WordPattern)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	words := make([]string, 0, len(keys))
	for _, key := range keys {
		token, err := keyspace.ParseWordKey(key)
		if err != nil {
			return nil, err
		}
		words = append(words, token)
	}
	sort.Strings(words)
	return words, nil
}
