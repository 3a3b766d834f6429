package state

import (
	"context"
	"slices"
	"sync"
)

// MemoryStoreOption configures NewMemoryStore.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	history int
}

// WithHistory keeps the last n saves of every ref. The default keeps one.
func WithHistory(n int) MemoryStoreOption {
	return func(cfg *memoryStoreConfig) {
		if n > 0 {
			cfg.history = n
		}
	}
}

// MemoryStore keeps snapshots in process memory, keyed by Ref.Identifier.
// Snapshots are stored as given; callers own their copies.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	history int
	saves   map[string][]memorySave[T]
}

type memorySave[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any](opts ...MemoryStoreOption) *MemoryStore[T] {
	cfg := memoryStoreConfig{history: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &MemoryStore[T]{history: cfg.history, saves: map[string][]memorySave[T]{}}
}

// Load returns the latest save at ref.
func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	saves := s.saves[key]
	if len(saves) == 0 {
		return zero, Meta{}, false, nil
	}
	latest := saves[len(saves)-1]
	return latest.snapshot, cloneMeta(latest.meta), true, nil
}

// Save appends snapshot to the history of ref, dropping the oldest save once
// the history is full.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saves := append(s.saves[key], memorySave[T]{snapshot: snapshot, meta: cloneMeta(meta)})
	if extra := len(saves) - s.history; extra > 0 {
		saves = slices.Delete(saves, 0, extra)
	}
	s.saves[key] = saves
	return cloneMeta(meta), nil
}

// History returns the metadata of the retained saves of ref, newest first.
func (s *MemoryStore[T]) History(ref Ref) ([]Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	saves := s.saves[key]
	out := make([]Meta, 0, len(saves))
	for i := len(saves) - 1; i >= 0; i-- {
		out = append(out, cloneMeta(saves[i].meta))
	}
	return out, nil
}

// Delete drops every save of ref. Deleting a missing ref is a no-op.
func (s *MemoryStore[T]) Delete(_ context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.saves, key)
	s.mu.Unlock()
	return nil
}

// Refs lists the stored refs ordered by identifier.
func (s *MemoryStore[T]) Refs() []Ref {
	s.mu.RLock()
	keys := make([]string, 0, len(s.saves))
	for key := range s.saves {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	refs := make([]Ref, 0, len(keys))
	for _, key := range keys {
		if ref, err := ParseRef(key); err == nil {
			refs = append(refs, ref)
		}
	}
	return refs
}
