package document

import (
	"context"
)

// Repository defines the interface for document storage.
type Repository interface {
	// Create stores a new document and assigns its Seq. Returns
	// ErrAlreadyExists if a document with the same ID already exists.
	Create(ctx context.Context, doc *Document) error

	// Get retrieves a document by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Document, error)

	// List returns all documents in creation order.
	List(ctx context.Context) ([]*Document, error)

	// Update overwrites name, content and updated_at. Returns ErrNotFound if not found.
	Update(ctx context.Context, doc *Document) error

	// SetActive marks id as the only active document. Returns ErrNotFound if
	// not found, in which case no document changes.
	SetActive(ctx context.Context, id string) error

	// Delete removes a document. This is a hard delete.
	Delete(ctx context.Context, id string) error

	// WriteOutcome overwrites result and errors of one document in a single
	// critical section. Returns ErrNotFound if not found.
	WriteOutcome(ctx context.Context, id string, result string, errs string) error
}
