package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gitter-badger/ashaw-notes/internal/notes"
	"github.com/gitter-badger/ashaw-notes/internal/search/parser"
	"github.com/gitter-badger/ashaw-notes/internal/store"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

func seedNotes(t *testing.T) (*Resolver, store.Store) {
	t.Helper()
	st := store.NewMemory()
	repo := notes.NewRepository(st)
	ctx := context.Background()
	for _, n := range []notes.Note{
		{Timestamp: 100, Text: "buy milk #errand"},
		{Timestamp: 200, Text: "write code"},
		{Timestamp: 300, Text: "buy bread #errand"},
	} {
		if err := repo.Save(ctx, n); err != nil {
			t.Fatalf("seeding note %d: %v", n.Timestamp, err)
		}
	}
	return New(st), st
}

func timestampsOf(results []notes.Note) []int64 {
	ts := make([]int64, len(results))
	for i, n := range results {
		ts[i] = n.Timestamp
	}
	return ts
}

func TestSearch(t *testing.T) {
	r, _ := seedNotes(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"single term", "buy", []int64{100, 300}},
		{"intersection", "buy milk", []int64{100}},
		{"include and exclude", "buy NOT bread", []int64{100}},
		{"exclusion only", "NOT buy", []int64{200}},
		{"empty query matches all", "", []int64{100, 200, 300}},
		{"tag", "#errand", []int64{100, 300}},
		{"tag with exclusion", "#errand NOT milk", []int64{300}},
		{"temporal token", "year_1970", []int64{100, 200, 300}},
		{"no match", "zanzibar", []int64{}},
		{"conflicting terms", "milk bread", []int64{}},
		{"exclude everything", "NOT year_1970", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Search(ctx, parser.Parse(tt.query))
			if err != nil {
				t.Fatalf("Search(%q): %v", tt.query, err)
			}
			if got == nil {
				t.Fatalf("Search(%q) returned nil, want empty slice", tt.query)
			}
			if !reflect.DeepEqual(timestampsOf(got), tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, timestampsOf(got), tt.want)
			}
		})
	}
}

func TestSearchReturnsText(t *testing.T) {
	r, _ := seedNotes(t)
	got, err := r.Search(context.Background(), parser.Parse("milk"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []notes.Note{{Timestamp: 100, Text: "buy milk #errand"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search = %v, want %v", got, want)
	}
}

func TestSearchResultsAscendByTimestamp(t *testing.T) {
	st := store.NewMemory()
	repo := notes.NewRepository(st)
	ctx := context.Background()
	for _, ts := range []int64{300, 100, 200} {
		if err := repo.Save(ctx, notes.Note{Timestamp: ts, Text: "same words"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	got, err := New(st).Search(ctx, parser.Parse("same"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := []int64{100, 200, 300}; !reflect.DeepEqual(timestampsOf(got), want) {
		t.Errorf("order = %v, want %v", timestampsOf(got), want)
	}
}

func TestSearchDanglingPostingIsCorruption(t *testing.T) {
	r, st := seedNotes(t)
	ctx := context.Background()
	if err := st.AddToSet(ctx, "w_ghost", "999"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}
	_, err := r.Search(ctx, parser.Parse("ghost"))
	if !errors.Is(err, apperrors.ErrValueCorrupt) {
		t.Errorf("err = %v, want ErrValueCorrupt", err)
	}
}

func TestSearchMalformedPostingMemberIsCorruption(t *testing.T) {
	r, st := seedNotes(t)
	ctx := context.Background()
	if err := st.AddToSet(ctx, "w_bad", "not-a-timestamp"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}
	_, err := r.Search(ctx, parser.Parse("bad"))
	if !errors.Is(err, apperrors.ErrValueCorrupt) {
		t.Errorf("err = %v, want ErrValueCorrupt", err)
	}
}

func TestSearchInvalidUTF8BodyIsCorruption(t *testing.T) {
	r, st := seedNotes(t)
	ctx := context.Background()
	if err := st.SetValue(ctx, "note_400", "caf\xc3"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := st.AddToSet(ctx, "w_caf", "400"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}
	_, err := r.Search(ctx, parser.Parse("caf"))
	if !errors.Is(err, apperrors.ErrValueCorrupt) {
		t.Errorf("err = %v, want ErrValueCorrupt", err)
	}
}

func TestSearchStrayKeyFailsLoudly(t *testing.T) {
	r, st := seedNotes(t)
	ctx := context.Background()
	if err := st.SetValue(ctx, "note_oops", "stray"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	_, err := r.Search(ctx, parser.Parse(""))
	if !errors.Is(err, apperrors.ErrMalformedKey) {
		t.Errorf("err = %v, want ErrMalformedKey", err)
	}
}
