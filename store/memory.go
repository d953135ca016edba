package store

import (
	"errors"
	"sort"
	"sync"
)

type MemoryStore[T any] struct {
	mu sync.RWMutex
	Db map[string]T
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{
		Db: make(map[string]T),
	}
}

func (m *MemoryStore[T]) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.Db), nil
}

func (m *MemoryStore[T]) Get(key string) (v T, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.Db[key]
	if !ok {
		return v, notFound(key)
	}

	return v, nil
}

func (m *MemoryStore[T]) Has(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.Db[key]
	return ok, nil
}

func (m *MemoryStore[T]) Put(key string, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Db[key] = value
	return nil
}

func (m *MemoryStore[T]) PutIfAbsent(key string, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Db[key]; ok {
		return exists(key)
	}
	m.Db[key] = value

	return nil
}

func (m *MemoryStore[T]) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Db[key]; !ok {
		return notFound(key)
	}
	delete(m.Db, key)

	return nil
}

// Scan works on a snapshot so fn may call back into the store.
func (m *MemoryStore[T]) Scan(fn func(key string, value T) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.Db))
	for k := range m.Db {
		keys = append(keys, k)
	}
	values := make(map[string]T, len(m.Db))
	for k, v := range m.Db {
		values[k] = v
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, values[k]); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}

	return nil
}

func (m *MemoryStore[T]) Close() error {
	return nil
}
