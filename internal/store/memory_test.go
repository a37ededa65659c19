package store

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

func TestSetOperationsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 3; i++ {
		if err := m.AddToSet(ctx, "w_milk", "100"); err != nil {
			t.Fatalf("AddToSet: %v", err)
		}
	}
	members, err := m.Union(ctx, "w_milk")
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	if len(members) != 1 || members[0] != "100" {
		t.Errorf("expected single member 100, got %v", members)
	}

	for i := 0; i < 2; i++ {
		if err := m.RemoveFromSet(ctx, "w_milk", "100"); err != nil {
			t.Fatalf("RemoveFromSet: %v", err)
		}
	}
	if err := m.RemoveFromSet(ctx, "w_never", "100"); err != nil {
		t.Errorf("removing from absent set should be a no-op, got %v", err)
	}
}

func TestEmptySetDisappears(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.AddToSet(ctx, "w_milk", "100"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}
	if err := m.RemoveFromSet(ctx, "w_milk", "100"); err != nil {
		t.Fatalf("RemoveFromSet: %v", err)
	}

	exists, err := m.Exists(ctx, "w_milk")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("emptied set should no longer exist")
	}
	keys, err := m.KeysMatching(ctx, "w_*")
	if err != nil {
		t.Fatalf("KeysMatching: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no w_* keys, got %v", keys)
	}
}

func TestIntersectAndUnion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	seed := map[string][]string{
		"w_buy":    {"100", "300"},
		"w_milk":   {"100"},
		"w_bread":  {"300"},
		"w_errand": {"100", "300"},
	}
	for key, members := range seed {
		for _, member := range members {
			if err := m.AddToSet(ctx, key, member); err != nil {
				t.Fatalf("AddToSet(%s, %s): %v", key, member, err)
			}
		}
	}

	t.Run("intersect", func(t *testing.T) {
		got, err := m.Intersect(ctx, "w_buy", "w_milk")
		if err != nil {
			t.Fatalf("Intersect: %v", err)
		}
		if len(got) != 1 || got[0] != "100" {
			t.Errorf("expected [100], got %v", got)
		}
	})

	t.Run("intersect with absent set", func(t *testing.T) {
		got, err := m.Intersect(ctx, "w_buy", "w_nothing")
		if err != nil {
			t.Fatalf("Intersect: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	})

	t.Run("union", func(t *testing.T) {
		got, err := m.Union(ctx, "w_milk", "w_bread")
		if err != nil {
			t.Fatalf("Union: %v", err)
		}
		if len(got) != 2 || got[0] != "100" || got[1] != "300" {
			t.Errorf("expected [100 300], got %v", got)
		}
	})

	t.Run("zero keys rejected", func(t *testing.T) {
		if _, err := m.Intersect(ctx); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Intersect() error = %v, want ErrInvalidInput", err)
		}
		if _, err := m.Union(ctx); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Union() error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestValueOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.GetValue(ctx, "note_100"); !errors.Is(err, apperrors.ErrKeyNotFound) {
		t.Errorf("GetValue on missing key = %v, want ErrKeyNotFound", err)
	}

	if err := m.SetValue(ctx, "note_100", "buy milk"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	val, err := m.GetValue(ctx, "note_100")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if val != "buy milk" {
		t.Errorf("GetValue = %q, want %q", val, "buy milk")
	}

	exists, err := m.Exists(ctx, "note_100")
	if err != nil || !exists {
		t.Errorf("Exists = (%v, %v), want (true, nil)", exists, err)
	}

	if err := m.Del(ctx, "note_100"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := m.GetValue(ctx, "note_100"); !errors.Is(err, apperrors.ErrKeyNotFound) {
		t.Errorf("GetValue after Del = %v, want ErrKeyNotFound", err)
	}
}

func TestKeysMatching(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, key := range []string{"note_100", "note_200"} {
		if err := m.SetValue(ctx, key, "text"); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
	}
	if err := m.AddToSet(ctx, "w_milk", "100"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}

	notes, err := m.KeysMatching(ctx, "note_*")
	if err != nil {
		t.Fatalf("KeysMatching: %v", err)
	}
	if len(notes) != 2 || notes[0] != "note_100" || notes[1] != "note_200" {
		t.Errorf("note keys = %v, want [note_100 note_200]", notes)
	}

	words, err := m.KeysMatching(ctx, "w_*")
	if err != nil {
		t.Fatalf("KeysMatching: %v", err)
	}
	if len(words) != 1 || words[0] != "w_milk" {
		t.Errorf("word keys = %v, want [w_milk]", words)
	}
}

func TestKeysMatchingBadPattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.SetValue(ctx, "note_100", "text"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := m.AddToSet(ctx, "w_milk", "100"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}

	// Malformed patterns error whether the match hits the value or the set
	// keyspace.
	if _, err := m.KeysMatching(ctx, "note_["); err == nil {
		t.Error("KeysMatching accepted a malformed pattern over values")
	}
	if _, err := m.KeysMatching(ctx, "w_["); err == nil {
		t.Error("KeysMatching accepted a malformed pattern over sets")
	}
}

func TestMultiGetAlignment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.SetValue(ctx, "note_100", "first"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := m.SetValue(ctx, "note_300", "third"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	values, err := m.MultiGet(ctx, "note_100", "note_200", "note_300")
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(values))
	}
	if values[0] == nil || *values[0] != "first" {
		t.Errorf("values[0] = %v, want first", values[0])
	}
	if values[1] != nil {
		t.Errorf("values[1] = %q, want nil for missing key", *values[1])
	}
	if values[2] == nil || *values[2] != "third" {
		t.Errorf("values[2] = %v, want third", values[2])
	}

	empty, err := m.MultiGet(ctx)
	if err != nil || len(empty) != 0 {
		t.Errorf("MultiGet() = (%v, %v), want empty", empty, err)
	}
}

func TestApplyBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var b Batch
	b.AddToSet("w_buy", "100")
	b.AddToSet("w_milk", "100")
	b.SetValue("note_100", "buy milk")
	if err := m.Apply(ctx, b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	val, err := m.GetValue(ctx, "note_100")
	if err != nil || val != "buy milk" {
		t.Fatalf("GetValue after Apply = (%q, %v)", val, err)
	}
	members, err := m.Intersect(ctx, "w_buy", "w_milk")
	if err != nil {
		t.Fatalf("Intersect: %v", err)
	}
	if len(members) != 1 || members[0] != "100" {
		t.Errorf("postings after Apply = %v, want [100]", members)
	}

	var undo Batch
	undo.RemoveFromSet("w_buy", "100")
	undo.RemoveFromSet("w_milk", "100")
	undo.Del("note_100")
	if err := m.Apply(ctx, undo); err != nil {
		t.Fatalf("Apply undo: %v", err)
	}
	if _, err := m.GetValue(ctx, "note_100"); !errors.Is(err, apperrors.ErrKeyNotFound) {
		t.Errorf("value should be gone after batched delete, got %v", err)
	}
	keys, err := m.KeysMatching(ctx, "w_*")
	if err != nil || len(keys) != 0 {
		t.Errorf("postings should be gone after batched delete, got %v (%v)", keys, err)
	}

	if err := m.Apply(ctx, Batch{}); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}
