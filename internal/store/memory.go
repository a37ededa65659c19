package store

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

// Memory is an in-process Store backed by mutex-guarded maps. It mirrors the
// Redis semantics the index relies on: empty sets disappear, and Apply is
// atomic with respect to concurrent readers.
type Memory struct {
	mu     sync.RWMutex
	sets   map[string]map[string]struct{}
	values map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sets:   make(map[string]map[string]struct{}),
		values: make(map[string]string),
	}
}

func (m *Memory) AddToSet(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addToSet(key, member)
	return nil
}

func (m *Memory) RemoveFromSet(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeFromSet(key, member)
	return nil
}

func (m *Memory) Intersect(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("intersect: %w: at least one key required", apperrors.ErrInvalidInput)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]struct{}, len(m.sets[keys[0]]))
	for member := range m.sets[keys[0]] {
		result[member] = struct{}{}
	}
	for _, key := range keys[1:] {
		set := m.sets[key]
		for member := range result {
			if _, ok := set[member]; !ok {
				delete(result, member)
			}
		}
	}
	return membersOf(result), nil
}

func (m *Memory) Union(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("union: %w: at least one key required", apperrors.ErrInvalidInput)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]struct{})
	for _, key := range keys {
		for member := range m.sets[key] {
			result[member] = struct{}{}
		}
	}
	return membersOf(result), nil
}

func (m *Memory) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for key := range m.values {
		if matched, err := path.Match(pattern, key); err != nil {
			return nil, fmt.Errorf("matching pattern %s: %w", pattern, err)
		} else if matched {
			keys = append(keys, key)
		}
	}
	for key := range m.sets {
		if matched, err := path.Match(pattern, key); err != nil {
			return nil, fmt.Errorf("matching pattern %s: %w", pattern, err)
		} else if matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) GetValue(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", apperrors.ErrKeyNotFound, key)
	}
	return val, nil
}

func (m *Memory) SetValue(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.values[key]; ok {
		return true, nil
	}
	_, ok := m.sets[key]
	return ok, nil
}

func (m *Memory) MultiGet(ctx context.Context, keys ...string) ([]*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make([]*string, len(keys))
	for i, key := range keys {
		if val, ok := m.values[key]; ok {
			v := val
			values[i] = &v
		}
	}
	return values, nil
}

// Apply applies all queued operations in order under one lock, so concurrent
// readers observe either none or all of the batch.
func (m *Memory) Apply(ctx context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range b.ops {
		switch o.kind {
		case opSetAdd:
			m.addToSet(o.key, o.member)
		case opSetRemove:
			m.removeFromSet(o.key, o.member)
		case opSetValue:
			m.values[o.key] = o.value
		case opDel:
			delete(m.values, o.key)
			delete(m.sets, o.key)
		}
	}
	return nil
}

func (m *Memory) addToSet(key, member string) {
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	set[member] = struct{}{}
}

// removeFromSet drops member and, like Redis, removes the key entirely when
// the set empties.
func (m *Memory) removeFromSet(key, member string) {
	set, ok := m.sets[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m.sets, key)
	}
}

func membersOf(set map[string]struct{}) []string {
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members
}
