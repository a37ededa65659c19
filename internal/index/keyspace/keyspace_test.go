package keyspace

import (
	"errors"
	"testing"

	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

func TestNoteKeyRoundTrip(t *testing.T) {
	key := NoteKey(1234567890)
	if key != "note_1234567890" {
		t.Fatalf("NoteKey = %s", key)
	}
	ts, err := ParseNoteKey(key)
	if err != nil {
		t.Fatalf("ParseNoteKey: %v", err)
	}
	if ts != 1234567890 {
		t.Errorf("timestamp = %d", ts)
	}
}

func TestWordKeyRoundTrip(t *testing.T) {
	key := WordKey("#errand")
	if key != "w_#errand" {
		t.Fatalf("WordKey = %s", key)
	}
	token, err := ParseWordKey(key)
	if err != nil {
		t.Fatalf("ParseWordKey: %v", err)
	}
	if token != "#errand" {
		t.Errorf("token = %s, want #errand", token)
	}
}

func TestParseNoteKeyMalformed(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"wrong prefix", "w_hello"},
		{"no prefix", "1234567890"},
		{"empty suffix", "note_"},
		{"non-numeric", "note_abc"},
		{"trailing garbage", "note_123x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseNoteKey(tt.key); !errors.Is(err, apperrors.ErrMalformedKey) {
				t.Errorf("ParseNoteKey(%q) err = %v, want ErrMalformedKey", tt.key, err)
			}
		})
	}
}

func TestParseWordKeyMalformed(t *testing.T) {
	for _, key := range []string{"note_123", "w_", "hello"} {
		if _, err := ParseWordKey(key); !errors.Is(err, apperrors.ErrMalformedKey) {
			t.Errorf("ParseWordKey(%q) err = %v, want ErrMalformedKey", key, err)
		}
	}
}

func TestNegativeTimestampParses(t *testing.T) {
	ts, err := ParseNoteKey(NoteKey(-60))
	if err != nil {
		t.Fatalf("ParseNoteKey: %v", err)
	}
	if ts != -60 {
		t.Errorf("timestamp = %d, want -60", ts)
	}
}
