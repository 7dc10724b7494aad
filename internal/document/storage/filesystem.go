package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xtal-lab/xtal/internal/document"
)

// CollectionFile is the file name used inside the storage directory.
const CollectionFile = "documents.json"

// collection is the on-disk layout: every document in creation order.
type collection struct {
	NextSeq   int64    `json:"next_seq"`
	Documents []record `json:"documents"`
}

func (c *collection) index(id string) int {
	for i := range c.Documents {
		if c.Documents[i].ID == id {
			return i
		}
	}
	return -1
}

// FileSystemRepository implements document.Repository as a single JSON file.
// Every write loads the collection, changes it and replaces the file with an
// atomic rename, all under one mutex.
type FileSystemRepository struct {
	mu   sync.RWMutex
	path string
}

// NewFileSystemRepository creates a file backed repository under rootDir.
func NewFileSystemRepository(rootDir string) (*FileSystemRepository, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	path := filepath.Join(rootDir, CollectionFile)
	slog.Info("[FileStore] Repository opened", "path", path)
	return &FileSystemRepository{path: path}, nil
}

func (r *FileSystemRepository) load() (*collection, error) {
	content, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return &collection{NextSeq: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document collection: %w", err)
	}
	var c collection
	if err := json.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("failed to decode document collection: %w", err)
	}
	if c.NextSeq < 1 {
		c.NextSeq = 1
	}
	return &c, nil
}

func (r *FileSystemRepository) save(c *collection) error {
	content, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document collection: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".documents-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace document collection: %w", err)
	}
	return nil
}

// modify runs fn on the loaded collection and persists it when fn succeeds.
func (r *FileSystemRepository) modify(fn func(c *collection) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return r.save(c)
}

func (r *FileSystemRepository) Create(ctx context.Context, d *document.Document) error {
	return r.modify(func(c *collection) error {
		if c.index(d.ID) >= 0 {
			return document.ErrAlreadyExists
		}
		d.Seq = c.NextSeq
		c.NextSeq++
		c.Documents = append(c.Documents, toRecord(d))
		return nil
	})
}

func (r *FileSystemRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.load()
	if err != nil {
		return nil, err
	}
	i := c.index(id)
	if i < 0 {
		return nil, document.ErrNotFound
	}
	return c.Documents[i].document(), nil
}

func (r *FileSystemRepository) List(ctx context.Context) ([]*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.load()
	if err != nil {
		return nil, err
	}
	result := make([]*document.Document, len(c.Documents))
	for i, rec := range c.Documents {
		result[i] = rec.document()
	}
	sortBySeq(result)
	return result, nil
}

func (r *FileSystemRepository) Update(ctx context.Context, d *document.Document) error {
	return r.modify(func(c *collection) error {
		i := c.index(d.ID)
		if i < 0 {
			return document.ErrNotFound
		}
		c.Documents[i].Name = d.Name
		c.Documents[i].Content = d.Content
		c.Documents[i].UpdatedAt = d.UpdatedAt
		return nil
	})
}

func (r *FileSystemRepository) SetActive(ctx context.Context, id string) error {
	return r.modify(func(c *collection) error {
		if c.index(id) < 0 {
			return document.ErrNotFound
		}
		for i := range c.Documents {
			c.Documents[i].Active = c.Documents[i].ID == id
		}
		return nil
	})
}

func (r *FileSystemRepository) Delete(ctx context.Context, id string) error {
	return r.modify(func(c *collection) error {
		i := c.index(id)
		if i < 0 {
			return document.ErrNotFound
		}
		c.Documents = append(c.Documents[:i], c.Documents[i+1:]...)
		return nil
	})
}

func (r *FileSystemRepository) WriteOutcome(ctx context.Context, id string, result string, errs string) error {
	return r.modify(func(c *collection) error {
		i := c.index(id)
		if i < 0 {
			return document.ErrNotFound
		}
		c.Documents[i].Result = result
		c.Documents[i].Errors = errs
		return nil
	})
}

// Ping checks that the collection is readable.
func (r *FileSystemRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.load()
	return err
}
