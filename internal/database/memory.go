package database

import (
	"context"
	"sync"

	"courtbook/internal/models"
)

// MemoryStore keeps the document in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	doc *models.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: models.NewDocument()}
}

func (s *MemoryStore) Load(_ context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		doc = models.NewDocument()
	}
	s.doc = doc.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.doc.Clone()
	if err := fn(doc); err != nil {
		return err
	}
	s.doc = doc.Clone()
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }
func (s *MemoryStore) Close() error                 { return nil }
