package store

import (
	"context"
	"fmt"
	"sync"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/utils"
)

type memoryCollection struct {
	order []string
	docs  map[string]document.Document
}

// MemoryStore keeps collections in process memory, returning documents in
// insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]document.Document)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) FindAll(ctx context.Context, collection string, match document.Predicate) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, document.Fault("find", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []document.Document{}, nil
	}
	out := make([]document.Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		if match == nil || match(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, collection, id string) (document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, document.Fault("find", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[collection]; ok {
		if doc, ok := c.docs[id]; ok {
			return doc.Clone(), nil
		}
	}
	return nil, document.ErrNotFound
}

func (s *MemoryStore) InsertOne(ctx context.Context, collection string, doc document.Document) (document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, document.Fault("insert", err)
	}
	stored, err := document.Normalize(doc)
	if err != nil {
		return nil, document.Fault("insert", err)
	}
	if stored.ID() == "" {
		stored.SetID(utils.NewID())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, exists := c.docs[stored.ID()]; exists {
		return nil, document.Fault("insert", fmt.Errorf("duplicate id %s", stored.ID()))
	}
	c.docs[stored.ID()] = stored
	c.order = append(c.order, stored.ID())
	return stored.Clone(), nil
}

func (s *MemoryStore) ReplaceOne(ctx context.Context, collection string, doc document.Document) error {
	if err := ctx.Err(); err != nil {
		return document.Fault("replace", err)
	}
	stored, err := document.Normalize(doc)
	if err != nil {
		return document.Fault("replace", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return document.ErrNotFound
	}
	if _, exists := c.docs[stored.ID()]; !exists {
		return document.ErrNotFound
	}
	c.docs[stored.ID()] = stored
	return nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return document.Fault("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return document.ErrNotFound
	}
	if _, exists := c.docs[id]; !exists {
		return document.ErrNotFound
	}
	c.remove(map[string]struct{}{id: {}})
	return nil
}

func (s *MemoryStore) DeleteMany(ctx context.Context, collection string, match document.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, document.Fault("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	doomed := make(map[string]struct{})
	for _, id := range c.order {
		if match == nil || match(c.docs[id]) {
			doomed[id] = struct{}{}
		}
	}
	c.remove(doomed)
	return len(doomed), nil
}

func (c *memoryCollection) remove(ids map[string]struct{}) {
	if len(ids) == 0 {
		return
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if _, gone := ids[id]; gone {
			delete(c.docs, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

// Close is a no-op; the data is discarded with the store
func (s *MemoryStore) Close() error {
	return nil
}
