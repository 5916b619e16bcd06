package cms

import (
	"context"
	"net/http"
	"sync"
)

// MemoryBackend 进程内后端，用于本地开发与测试
type MemoryBackend struct {
	mu    sync.RWMutex
	seq   map[string]int64
	items map[string][]map[string]any
	docs  map[string]map[string]any
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		seq:   make(map[string]int64),
		items: make(map[string][]map[string]any),
		docs:  make(map[string]map[string]any),
	}
}

func (m *MemoryBackend) lookup(documentID string) (map[string]any, bool) {
	f, ok := m.docs[documentID]
	return f, ok
}

func (m *MemoryBackend) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []map[string]any
	for _, f := range m.items[collection] {
		if matches(f, q, m.lookup) {
			hits = append(hits, f)
		}
	}
	sortFields(hits, q.Sort)
	hits = limit(hits, q.PageSize)

	out := make([]Record, 0, len(hits))
	for _, f := range hits {
		out = append(out, present(f, q.Populate, m.lookup))
	}
	return out, nil
}

func (m *MemoryBackend) Get(ctx context.Context, collection, documentID string, populate ...string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.find(collection, documentID)
	if !ok {
		return nil, opErr("get", collection, http.StatusNotFound, "record not found", nil)
	}
	r := present(f, populate, m.lookup)
	return &r, nil
}

func (m *MemoryBackend) Create(ctx context.Context, collection string, data map[string]any, populate ...string) (*Record, error) {
	fields, err := normalize(data)
	if err != nil {
		return nil, opErr("create", collection, http.StatusBadRequest, "invalid payload", err)
	}
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq[collection]++
	doc := newDocumentID()
	stamp(fields, m.seq[collection], doc, true)
	m.items[collection] = append(m.items[collection], fields)
	m.docs[doc] = fields

	r := present(fields, populate, m.lookup)
	return &r, nil
}

func (m *MemoryBackend) Update(ctx context.Context, collection, documentID string, data map[string]any, populate ...string) (*Record, error) {
	patch, err := normalize(data)
	if err != nil {
		return nil, opErr("update", collection, http.StatusBadRequest, "invalid payload", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.find(collection, documentID)
	if !ok {
		return nil, opErr("update", collection, http.StatusNotFound, "record not found", nil)
	}
	merge(f, patch)
	stamp(f, toInt64(f["id"]), documentID, false)

	r := present(f, populate, m.lookup)
	return &r, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, collection, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.items[collection]
	for i, f := range list {
		if f["documentId"] == documentID {
			m.items[collection] = append(list[:i:i], list[i+1:]...)
			delete(m.docs, documentID)
			return nil
		}
	}
	return opErr("delete", collection, http.StatusNotFound, "record not found", nil)
}

func (m *MemoryBackend) find(collection, documentID string) (map[string]any, bool) {
	f, ok := m.docs[documentID]
	if !ok {
		return nil, false
	}
	for _, item := range m.items[collection] {
		if item["documentId"] == documentID {
			return f, true
		}
	}
	return nil, false
}
