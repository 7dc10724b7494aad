package document_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xtal-lab/xtal/internal/document"
	"github.com/xtal-lab/xtal/internal/document/storage"
	storagemocks "github.com/xtal-lab/xtal/internal/mocks/storage"
)

func activeIDs(t *testing.T, svc *document.Service) []string {
	t.Helper()
	docs, err := svc.List(context.Background())
	require.NoError(t, err)
	var active []string
	for _, d := range docs {
		if d.Active {
			active = append(active, d.ID)
		}
	}
	return active
}

func createN(t *testing.T, svc *document.Service, n int) []*document.Document {
	t.Helper()
	docs := make([]*document.Document, n)
	for i := range docs {
		d, err := svc.Create(context.Background(), "", "")
		require.NoError(t, err)
		docs[i] = d
	}
	return docs
}

func TestService_CreateActivatesNewDocument(t *testing.T) {
	svc := document.NewService(storage.NewMemoryRepository())

	docs := createN(t, svc, 3)
	require.Equal(t, document.DefaultName, docs[0].Name)
	require.NotEmpty(t, docs[0].ID)
	require.Equal(t, []string{docs[2].ID}, activeIDs(t, svc))
}

func TestService_Activate(t *testing.T) {
	ctx := context.Background()
	svc := document.NewService(storage.NewMemoryRepository())
	docs := createN(t, svc, 3)

	require.NoError(t, svc.Activate(ctx, docs[0].ID))
	require.Equal(t, []string{docs[0].ID}, activeIDs(t, svc))

	require.ErrorIs(t, svc.Activate(ctx, "missing"), document.ErrNotFound)
	require.Equal(t, []string{docs[0].ID}, activeIDs(t, svc))
}

func TestService_RemoveMovesActiveMarker(t *testing.T) {
	tests := []struct {
		name       string
		activate   int
		remove     int
		wantActive int // index into the original list, -1 for none
	}{
		{name: "active middle goes right", activate: 1, remove: 1, wantActive: 2},
		{name: "active last goes left", activate: 2, remove: 2, wantActive: 1},
		{name: "active first goes right", activate: 0, remove: 0, wantActive: 1},
		{name: "inactive removal keeps marker", activate: 0, remove: 2, wantActive: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc := document.NewService(storage.NewMemoryRepository())
			docs := createN(t, svc, 3)
			require.NoError(t, svc.Activate(ctx, docs[tc.activate].ID))

			require.NoError(t, svc.Remove(ctx, docs[tc.remove].ID))
			require.Equal(t, []string{docs[tc.wantActive].ID}, activeIDs(t, svc))
		})
	}
}

func TestService_RemoveLastDocument(t *testing.T) {
	ctx := context.Background()
	svc := document.NewService(storage.NewMemoryRepository())
	docs := createN(t, svc, 1)

	require.NoError(t, svc.Remove(ctx, docs[0].ID))
	require.Empty(t, activeIDs(t, svc))
	require.ErrorIs(t, svc.Remove(ctx, docs[0].ID), document.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := document.NewService(storage.NewMemoryRepository())
	d, err := svc.Create(ctx, "scratch", "1;")
	require.NoError(t, err)

	content := "2;"
	updated, err := svc.Update(ctx, d.ID, document.Patch{Content: &content})
	require.NoError(t, err)
	require.Equal(t, "scratch", updated.Name)
	require.Equal(t, "2;", updated.Content)
	require.False(t, updated.UpdatedAt.Before(d.UpdatedAt))

	_, err = svc.Update(ctx, "missing", document.Patch{Content: &content})
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestService_WriteOutcome(t *testing.T) {
	ctx := context.Background()
	svc := document.NewService(storage.NewMemoryRepository())
	d, err := svc.Create(ctx, "", "x;")
	require.NoError(t, err)

	require.NoError(t, svc.WriteOutcome(ctx, d.ID, "1\n", []string{"a", "b"}))
	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "1\n", got.Result)
	require.Equal(t, "a\nb", got.Errors)

	require.NoError(t, svc.WriteOutcome(ctx, "missing", "1\n", nil), "unknown ids are dropped")
}

func TestService_WriteOutcomeStorageError(t *testing.T) {
	repo := storagemocks.NewRepository(t)
	storageErr := errors.New("disk full")
	repo.EXPECT().
		WriteOutcome(mock.Anything, "doc-1", "1\n", "").
		Return(storageErr).
		Once()

	svc := document.NewService(repo)
	err := svc.WriteOutcome(context.Background(), "doc-1", "1\n", nil)
	require.ErrorIs(t, err, storageErr)
	require.ErrorContains(t, err, "failed to write outcome for document doc-1")
}

func TestService_CreateStorageError(t *testing.T) {
	repo := storagemocks.NewRepository(t)
	repo.EXPECT().
		Create(mock.Anything, mock.AnythingOfType("*document.Document")).
		Return(document.ErrAlreadyExists).
		Once()

	svc := document.NewService(repo)
	_, err := svc.Create(context.Background(), "x", "")
	require.ErrorIs(t, err, document.ErrAlreadyExists)
}

func TestNewService_PanicsOnNilRepository(t *testing.T) {
	require.Panics(t, func() { document.NewService(nil) })
}
