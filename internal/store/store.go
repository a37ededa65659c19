// Package store defines the set-oriented key/value contract the note index
// is built on, together with its Redis and in-memory implementations. The
// index keeps one postings set per token and one value per note; everything
// the repository and resolver need from a backend is expressed here.
package store

import "context"

// Store is the backing-store contract for the note index.
//
// Set operations are observably idempotent: adding an existing member or
// removing a non-member is a no-op. Intersect and Union require at least one
// key and report ErrInvalidInput otherwise; the caller decides what an empty
// key list means. Missing values surface ErrKeyNotFound from GetValue and nil
// entries from MultiGet.
type Store interface {
	AddToSet(ctx context.Context, key, member string) error
	RemoveFromSet(ctx context.Context, key, member string) error
	Intersect(ctx context.Context, keys ...string) ([]string, error)
	Union(ctx context.Context, keys ...string) ([]string, error)
	KeysMatching(ctx context.Context, pattern string) ([]string, error)
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	MultiGet(ctx context.Context, keys ...string) ([]*string, error)

	// Apply executes all writes queued on the batch as one unit. Backends
	// with transactions or pipelining apply them atomically; others apply
	// them in order.
	Apply(ctx context.Context, b Batch) error
}

type opKind int

const (
	opSetAdd opKind = iota
	opSetRemove
	opSetValue
	opDel
)

type op struct {
	kind   opKind
	key    string
	member string
	value  string
}

// Batch accumulates writes to be applied in one Apply call. Operations are
// applied in the order they were queued.
type Batch struct {
	ops []op
}

// AddToSet queues a set-add of member at key.
func (b *Batch) AddToSet(key, member string) {
	b.ops = append(b.ops, op{kind: opSetAdd, key: key, member: member})
}

// RemoveFromSet queues a set-remove of member at key.
func (b *Batch) RemoveFromSet(key, member string) {
	b.ops = append(b.ops, op{kind: opSetRemove, key: key, member: member})
}

// SetValue queues a value write at key.
func (b *Batch) SetValue(key, value string) {
	b.ops = append(b.ops, op{kind: opSetValue, key: key, value: value})
}

// Del queues a key deletion.
func (b *Batch) Del(key string) {
	b.ops = append(b.ops, op{kind: opDel, key: key})
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}
