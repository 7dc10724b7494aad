// Package storage provides document.Repository backends: in-memory, a JSON
// collection file and badger.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/xtal-lab/xtal/internal/document"
)

// MemoryRepository is an in-memory implementation of document.Repository.
// Useful for testing and development.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*document.Document
	seq  int64
}

// NewMemoryRepository creates a new in-memory document repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs: make(map[string]*document.Document),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, d *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[d.ID]; exists {
		return document.ErrAlreadyExists
	}

	r.seq++
	d.Seq = r.seq
	// Store a copy to prevent external modification
	r.docs[d.ID] = d.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, exists := r.docs[id]
	if !exists {
		return nil, document.ErrNotFound
	}
	return d.Clone(), nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*document.Document, 0, len(r.docs))
	for _, d := range r.docs {
		result = append(result, d.Clone())
	}
	sortBySeq(result)
	return result, nil
}

func (r *MemoryRepository) Update(ctx context.Context, d *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.docs[d.ID]
	if !exists {
		return document.ErrNotFound
	}
	stored.Name = d.Name
	stored.Content = d.Content
	stored.UpdatedAt = d.UpdatedAt
	return nil
}

func (r *MemoryRepository) SetActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[id]; !exists {
		return document.ErrNotFound
	}
	for _, d := range r.docs {
		d.Active = d.ID == id
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[id]; !exists {
		return document.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *MemoryRepository) WriteOutcome(ctx context.Context, id string, result string, errs string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.docs[id]
	if !exists {
		return document.ErrNotFound
	}
	d.Result = result
	d.Errors = errs
	return nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func sortBySeq(docs []*document.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
}
