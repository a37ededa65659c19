// Package resolver executes parsed queries against the note index. Matching
// is pure set algebra on the postings: intersect the include terms, subtract
// the union of the exclude terms, then load the surviving notes.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/gitter-badger/ashaw-notes/internal/index/keyspace"
	"github.com/gitter-badger/ashaw-notes/internal/notes"
	"github.com/gitter-badger/ashaw-notes/internal/search/parser"
	"github.com/gitter-badger/ashaw-notes/internal/store"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store) *Resolver {
	return &Resolver{
		store:  s,
		logger: slog.Default().With("component", "search-resolver"),
	}
}

// Search returns the notes matching q in ascending timestamp order. A query
// with no include terms matches every note before exclusions apply; a query
// matching nothing returns an empty, non-nil slice.
func (r *Resolver) Search(ctx context.Context, q *parser.Query) ([]notes.Note, error) {
	members, err := r.matchMembers(ctx, q)
	if err != nil {
		return nil, err
	}

	timestamps := make([]int64, 0, len(members))
	for _, member := range members {
		ts, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: posting member %q is not a timestamp", apperrors.ErrValueCorrupt, member)
		}
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	results, err := r.fetch(ctx, timestamps)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("search resolved",
		"terms", q.Terms,
		"excluded", q.ExcludeTerms,
		"matches", len(results),
	)
	return results, nil
}

// matchMembers returns the matching timestamps as raw set members, before
// ordering.
func (r *Resolver) matchMembers(ctx context.Context, q *parser.Query) ([]string, error) {
	var members []string
	if len(q.Terms) > 0 {
		var err error
		members, err = r.store.Intersect(ctx, wordKeys(q.Terms)...)
		if err != nil {
			return nil, fmt.Errorf("intersecting postings: %w", err)
		}
	} else {
		noteKeys, err := r.store.KeysMatching(ctx, keyspace.NotePattern)
		if err != nil {
			return nil, fmt.Errorf("scanning notes: %w", err)
		}
		members = make([]string, 0, len(noteKeys))
		for _, key := range noteKeys {
			ts, err := keyspace.ParseNoteKey(key)
			if err != nil {
				return nil, err
			}
			members = append(members, strconv.FormatInt(ts, 10))
		}
	}

	if len(q.ExcludeTerms) == 0 || len(members) == 0 {
		return members, nil
	}
	excluded, err := r.store.Union(ctx, wordKeys(q.ExcludeTerms)...)
	if err != nil {
		return nil, fmt.Errorf("unioning excluded postings: %w", err)
	}
	drop := make(map[string]struct{}, len(excluded))
	for _, member := range excluded {
		drop[member] = struct{}{}
	}
	kept := make([]string, 0, len(members))
	for _, member := range members {
		if _, ok := drop[member]; !ok {
			kept = append(kept, member)
		}
	}
	return kept, nil
}

// fetch loads note bodies in one batched read. An index entry whose note body
// is gone, or a body that is not valid UTF-8, means the index and the data
// disagree; that surfaces as corruption rather than being silently skipped.
func (r *Resolver) fetch(ctx context.Context, timestamps []int64) ([]notes.Note, error) {
	results := make([]notes.Note, 0, len(timestamps))
	if len(timestamps) == 0 {
		return results, nil
	}
	keys := make([]string, len(timestamps))
	for i, ts := range timestamps {
		keys[i] = keyspace.NoteKey(ts)
	}
	values, err := r.store.MultiGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("loading notes: %w", err)
	}
	for i, value := range values {
		if value == nil {
			return nil, fmt.Errorf("%w: note %d is indexed but has no body", apperrors.ErrValueCorrupt, timestamps[i])
		}
		if !utf8.ValidString(*value) {
			return nil, fmt.Errorf("%w: note %d body is not valid UTF-8", apperrors.ErrValueCorrupt, timestamps[i])
		}
		results = append(results, notes.Note{Timestamp: timestamps[i], Text: *value})
	}
	return results, nil
}

func wordKeys(terms []string) []string {
	keys := make([]string, len(terms))
	for i, term := range terms {
		keys[i] = keyspace.WordKey(term)
	}
	return keys
}
