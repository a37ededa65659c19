// Package keyspace defines the backend key layout: note bodies live at
// note_<timestamp> and postings at w_<token>. Keys are parsed
// structurally so a stray key surfaces as an error instead of being
// misread as data.
package keyspace

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

const (
	notePrefix = "note_"
	wordPrefix = "w_"

	// NotePattern matches every note body key.
	NotePattern = "note_*"
	// WordPattern matches every posting key, tags and temporal tokens included.
	WordPattern = "w_*"
)

// NoteKey returns the key holding the note body for the given timestamp.
func NoteKey(timestamp int64) string {
	return notePrefix + strconv.FormatInt(timestamp, 10)
}

// WordKey returns the posting key for a token.
func WordKey(token string) string {
	return wordPrefix + token
}

// ParseNoteKey extracts the timestamp from a note body key.
func ParseNoteKey(key string) (int64, error) {
	rest, ok := strings.CutPrefix(key, notePrefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q is not a note key", apperrors.ErrMalformedKey, key)
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has a non-numeric timestamp", apperrors.ErrMalformedKey, key)
	}
	return ts, nil
}

// ParseWordKey extracts the token from a posting key.
func ParseWordKey(key string) (string, error) {
	token, ok := strings.CutPrefix(key, wordPrefix)
	if !ok || token == "" {
		return "", fmt.Errorf("%w: %q is not a posting key", apperrors.ErrMalformedKey, key)
	}
	return token, nil
}
