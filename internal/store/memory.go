package store

import (
	"context"
	"sync"

	"storefront/internal/enrich"
)

// Memory is an in-process enrich.Store that lists entities in insertion order.
type Memory[K comparable, E any] struct {
	mu     sync.Mutex
	name   string
	key    func(E) K
	assign func(E, int64) (E, bool)

	seq   int64
	order []K
	items map[K]E
}

// NewMemory builds a store for entities identified by key. assign, when set,
// gives an entity without an id the next sequence value and reports whether it
// did; entities with composite keys pass nil.
func NewMemory[K comparable, E any](name string, key func(E) K, assign func(E, int64) (E, bool)) *Memory[K, E] {
	return &Memory[K, E]{
		name:   name,
		key:    key,
		assign: assign,
		items:  make(map[K]E),
	}
}

func (m *Memory[K, E]) Get(ctx context.Context, key K) (E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		var zero E
		return zero, m.notFound(key)
	}
	return e, nil
}

func (m *Memory[K, E]) List(ctx context.Context) ([]E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]E, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.items[k])
	}
	return out, nil
}

// Save inserts the entity, or replaces it in place when its key already exists.
func (m *Memory[K, E]) Save(ctx context.Context, e E) (E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assign != nil {
		if assigned, ok := m.assign(e, m.seq+1); ok {
			m.seq++
			e = assigned
		}
	}
	k := m.key(e)
	if _, ok := m.items[k]; !ok {
		m.order = append(m.order, k)
	}
	m.items[k] = e
	return e, nil
}

func (m *Memory[K, E]) Update(ctx context.Context, e E) (E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(e)
	if _, ok := m.items[k]; !ok {
		var zero E
		return zero, m.notFound(k)
	}
	m.items[k] = e
	return e, nil
}

func (m *Memory[K, E]) Delete(ctx context.Context, key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return m.notFound(key)
	}
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory[K, E]) notFound(key K) error {
	return enrich.NotFoundf("%s with id: %v not found", m.name, key)
}
