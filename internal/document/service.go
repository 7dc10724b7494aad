package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service manages documents on top of a Repository. Operations that move the
// active marker are serialized so exactly one document stays active.
type Service struct {
	repo Repository
	mu   sync.Mutex
	now  func() time.Time
}

// NewService creates a document service.
func NewService(repo Repository) *Service {
	if repo == nil {
		panic("document.NewService: repo is nil")
	}
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document and makes it the active one.
func (s *Service) Create(ctx context.Context, name, content string) (*Document, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	now := s.now()
	doc := &Document{
		ID:        uuid.NewString(),
		Name:      name,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	if err := s.repo.SetActive(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to activate document %s: %w", doc.ID, err)
	}
	doc.Active = true

	slog.Info("[Documents] Created", "id", doc.ID, "name", doc.Name)
	return doc, nil
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns every document in creation order.
func (s *Service) List(ctx context.Context) ([]*Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Update applies p to the document and returns the stored result.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Apply(doc) {
		return doc, nil
	}
	doc.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return doc, nil
}

// Activate makes id the only active document.
func (s *Service) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.SetActive(ctx, id)
}

// Remove deletes a document. When it was active, its right neighbour becomes
// active, or its left neighbour when it was the last one.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	idx := -1
	for i, d := range docs {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if !docs[idx].Active || len(docs) == 1 {
		return nil
	}

	next := docs[len(docs)-2]
	if idx < len(docs)-1 {
		next = docs[idx+1]
	}
	if err := s.repo.SetActive(ctx, next.ID); err != nil {
		return fmt.Errorf("failed to activate document %s: %w", next.ID, err)
	}
	slog.Debug("[Documents] Active document moved", "removed", id, "active", next.ID)
	return nil
}

// WriteOutcome stores an evaluation outcome on the document. An unknown id is
// not an error: the write is dropped.
func (s *Service) WriteOutcome(ctx context.Context, id string, result string, errs []string) error {
	err := s.repo.WriteOutcome(ctx, id, result, strings.Join(errs, "\n"))
	if errors.Is(err, ErrNotFound) {
		slog.Debug("[Documents] Outcome dropped for unknown document", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to write outcome for document %s: %w", id, err)
	}
	return nil
}
