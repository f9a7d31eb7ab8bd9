package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process DocumentStore used for development and
// tests. Documents are copied on the way in and out.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]any)}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(doc), nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection(collection)[id] = deepCopy(data)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = deepCopyValue(v)
	}
	return nil
}

func (m *MemoryStore) Merge(_ context.Context, collection, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collection(collection)
	docs[id] = deepMerge(docs[id], data)
	return nil
}

func (m *MemoryStore) QueryByField(_ context.Context, collection, field string, value any) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := fmt.Sprint(value)
	var out []Snapshot
	for id, doc := range m.collections[collection] {
		if v, ok := doc[field]; ok && fmt.Sprint(v) == want {
			out = append(out, Snapshot{ID: id, Data: deepCopy(doc)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) collection(name string) map[string]map[string]any {
	docs, ok := m.collections[name]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[name] = docs
	}
	return docs
}
