package kv

import (
	"context"
	"sync"

	"vcflow/internal/sentinel"
)

// Memory is an in-process Store. It has no TTL and no eviction; it is the dev
// server default and the test double for everything else.
type Memory[T any] struct {
	mu      sync.RWMutex
	records map[string]T
}

// NewMemory constructs an empty in-memory store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{records: make(map[string]T)}
}

func (m *Memory[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	return v, nil
}

func (m *Memory[T]) Set(_ context.Context, id string, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = value
	return nil
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// List returns records in unspecified order; callers sort.
func (m *Memory[T]) List(_ context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, 0, len(m.records))
	for _, v := range m.records {
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory[T]) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	m.records = make(map[string]T)
	return n, nil
}

var _ Store[string] = (*Memory[string])(nil)
