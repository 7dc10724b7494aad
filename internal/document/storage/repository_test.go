package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtal-lab/xtal/internal/document"
)

type backend struct {
	name string
	open func(t *testing.T) document.Repository
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) document.Repository {
			return NewMemoryRepository()
		}},
		{"file", func(t *testing.T) document.Repository {
			repo, err := NewFileSystemRepository(t.TempDir())
			require.NoError(t, err)
			return repo
		}},
		{"badger", func(t *testing.T) document.Repository {
			repo, err := NewBadgerRepository(t.TempDir(), 16)
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, repo.Close()) })
			return repo
		}},
	}
}

func newDoc(id string) *document.Document {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return &document.Document{ID: id, Name: "tab " + id, Content: id + ";", CreatedAt: now, UpdatedAt: now}
}

func ids(docs []*document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)

			for _, id := range []string{"c", "a", "b"} {
				require.NoError(t, repo.Create(ctx, newDoc(id)))
			}
			require.ErrorIs(t, repo.Create(ctx, newDoc("a")), document.ErrAlreadyExists)

			docs, err := repo.List(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"c", "a", "b"}, ids(docs), "creation order")

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "tab a", got.Name)
			require.Equal(t, "a;", got.Content)

			got.Name = "renamed"
			got.Content = "1 + 1;"
			got.UpdatedAt = got.UpdatedAt.Add(time.Minute)
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "renamed", got.Name)
			require.Equal(t, "1 + 1;", got.Content)

			require.NoError(t, repo.Delete(ctx, "c"))
			require.ErrorIs(t, repo.Delete(ctx, "c"), document.ErrNotFound)
			_, err = repo.Get(ctx, "c")
			require.ErrorIs(t, err, document.ErrNotFound)
			require.ErrorIs(t, repo.Update(ctx, newDoc("c")), document.ErrNotFound)

			docs, err = repo.List(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b"}, ids(docs))
		})
	}
}

func TestRepository_SetActive(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			for _, id := range []string{"a", "b", "c"} {
				require.NoError(t, repo.Create(ctx, newDoc(id)))
			}

			require.NoError(t, repo.SetActive(ctx, "b"))
			require.NoError(t, repo.SetActive(ctx, "c"))
			require.ErrorIs(t, repo.SetActive(ctx, "missing"), document.ErrNotFound)

			docs, err := repo.List(ctx)
			require.NoError(t, err)
			for _, d := range docs {
				require.Equal(t, d.ID == "c", d.Active, d.ID)
			}
		})
	}
}

func TestRepository_WriteOutcome(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			require.NoError(t, repo.Create(ctx, newDoc("a")))

			require.NoError(t, repo.WriteOutcome(ctx, "a", "5\n", "Error: x"))
			require.ErrorIs(t, repo.WriteOutcome(ctx, "missing", "", ""), document.ErrNotFound)

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "5\n", got.Result)
			require.Equal(t, "Error: x", got.Errors)
			require.Equal(t, "a;", got.Content, "content is untouched")
		})
	}
}

func TestRepository_ConcurrentWriteOutcome(t *testing.T) {
	ctx := context.Background()
	const n = 16
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			for i := 0; i < n; i++ {
				require.NoError(t, repo.Create(ctx, newDoc(fmt.Sprintf("d%02d", i))))
			}

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- repo.WriteOutcome(ctx, fmt.Sprintf("d%02d", i), fmt.Sprintf("%d\n", i), "")
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			docs, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, docs, n)
			for i, d := range docs {
				require.Equal(t, fmt.Sprintf("%d\n", i), d.Result, d.ID)
			}
		})
	}
}

func TestRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			d := newDoc("a")
			require.NoError(t, repo.Create(ctx, d))
			d.Content = "changed"

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "a;", got.Content)
			got.Result = "changed"

			again, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Empty(t, again.Result)
		})
	}
}

func TestFileSystemRepository_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := NewFileSystemRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newDoc("a")))
	require.NoError(t, repo.WriteOutcome(ctx, "a", "1\n", ""))

	reopened, err := NewFileSystemRepository(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1\n", got.Result)
	require.Equal(t, int64(1), got.Seq)

	require.NoError(t, reopened.Create(ctx, newDoc("b")))
	got, err = reopened.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Seq)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are renamed or removed")
	require.Equal(t, CollectionFile, entries[0].Name())
}

func TestFileSystemRepository_CorruptCollection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CollectionFile), []byte("{"), 0o644))

	repo, err := NewFileSystemRepository(dir)
	require.NoError(t, err)

	_, err = repo.List(context.Background())
	require.ErrorContains(t, err, "failed to decode document collection")
	require.Error(t, repo.Ping(context.Background()))
}

func TestBadgerRepository_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := NewBadgerRepository(dir, 16)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newDoc("a")))
	require.NoError(t, repo.WriteOutcome(ctx, "a", "1\n", "boom"))
	require.NoError(t, repo.Close())

	reopened, err := NewBadgerRepository(dir, 16)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Create(ctx, newDoc("b")))
	docs, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(docs))
	require.Equal(t, "boom", docs[0].Errors)
	require.NoError(t, reopened.Ping(ctx))
}
