package store

import (
	"context"
	"sync"
	"time"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// MemoryStore is an in-memory Client for tests and single-node use.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]Document)}
}

func (s *MemoryStore) table(name string) map[string]Document {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]Document)
		s.tables[name] = t
	}
	return t
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(_ context.Context, table, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.tables[table][id]
	if !ok {
		return Document{}, notFound(table, id)
	}
	return copyDoc(doc), nil
}

// Select returns copies of the matching documents.
func (s *MemoryStore) Select(_ context.Context, table string, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.tables[table]))
	for _, d := range s.tables[table] {
		docs = append(docs, d)
	}
	out := selectFrom(docs, q)
	for i := range out {
		out[i] = copyDoc(out[i])
	}
	return out, nil
}

// Create stores a new document.
func (s *MemoryStore) Create(_ context.Context, table string, doc Document) (Document, error) {
	data, err := normalizeData(doc.Data)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = newID()
	}
	t := s.table(table)
	if _, exists := t[doc.ID]; exists {
		return Document{}, model.NewConflictError(table + " \"" + doc.ID + "\" already exists")
	}

	now := time.Now().UTC()
	doc.Data = data
	doc.Version = 1
	doc.CreatedAt, doc.UpdatedAt = now, now
	t[doc.ID] = doc
	return copyDoc(doc), nil
}

// Update replaces a document with optimistic locking.
func (s *MemoryStore) Update(_ context.Context, table string, doc Document) (Document, error) {
	data, err := normalizeData(doc.Data)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tables[table][doc.ID]
	if !ok {
		return Document{}, notFound(table, doc.ID)
	}
	if existing.Version != doc.Version {
		return Document{}, versionConflict(table, doc.ID, doc.Version)
	}

	existing.Data = data
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()
	s.tables[table][doc.ID] = existing
	return copyDoc(existing), nil
}

// Upsert creates or replaces a document.
func (s *MemoryStore) Upsert(_ context.Context, table string, doc Document) (Document, error) {
	data, err := normalizeData(doc.Data)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = newID()
	}
	t := s.table(table)
	now := time.Now().UTC()
	existing, ok := t[doc.ID]
	if !ok {
		existing = Document{ID: doc.ID, CreatedAt: now}
	}
	existing.Data = data
	existing.Version++
	existing.UpdatedAt = now
	t[doc.ID] = existing
	return copyDoc(existing), nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][id]; !ok {
		return notFound(table, id)
	}
	delete(s.tables[table], id)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of documents in table. For testing.
func (s *MemoryStore) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// copyDoc detaches the returned document from the stored one. Data holds
// only JSON types after normalize, so a JSON round trip is a deep copy.
func copyDoc(d Document) Document {
	data, _ := normalizeData(d.Data)
	d.Data = data
	return d
}
