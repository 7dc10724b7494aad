package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xtal-lab/xtal/internal/evaluation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echo reports the source text as the result so updates are predictable.
var echo = EvaluatorFunc(func(_ context.Context, req evaluation.Request) (*evaluation.Outcome, error) {
	return &evaluation.Outcome{Result: req.SourceText, Errors: []string{}, State: evaluation.StateCompleted}, nil
})

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func next(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func TestWatcher_ReevaluatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.js")
	writeFile(t, path, "1\n")

	w, err := New(path, echo, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Update, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(u Update) { updates <- u }) }()

	first := next(t, updates)
	require.NoError(t, first.Err)
	require.Equal(t, "1\n", first.Outcome.Result)
	require.Empty(t, first.Diff)

	writeFile(t, path, "2\n")
	second := next(t, updates)
	require.NoError(t, second.Err)
	require.Equal(t, "2\n", second.Outcome.Result)
	require.Contains(t, second.Diff, "-1\n")
	require.Contains(t, second.Diff, "+2\n")

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch.js")
	writeFile(t, path, "a\n")

	w, err := New(path, echo, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Update, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(u Update) { updates <- u }) }()

	next(t, updates)
	writeFile(t, filepath.Join(dir, "other.js"), "b\n")

	select {
	case u := <-updates:
		t.Fatalf("unexpected update for %s", u.Path)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_EvaluatorError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.js")
	writeFile(t, path, "x")

	failing := EvaluatorFunc(func(context.Context, evaluation.Request) (*evaluation.Outcome, error) {
		return nil, errors.New("no slot")
	})
	w, err := New(path, failing, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Update, 1)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(u Update) { updates <- u }) }()

	u := next(t, updates)
	require.EqualError(t, u.Err, "no slot")
	require.Nil(t, u.Outcome)

	cancel()
	require.NoError(t, <-done)
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New(filepath.Join(dir, "missing.js"), echo, 0)
	require.Error(t, err)

	_, err = New(dir, echo, 0)
	require.ErrorContains(t, err, "is a directory")

	_, err = New(filepath.Join(dir, "x.js"), nil, 0)
	require.Error(t, err)
}

func TestDiff(t *testing.T) {
	require.Empty(t, Diff("1\n", "1\n"))

	d := Diff("1\n\n3\n", "1\n\n4\n")
	require.True(t, strings.HasPrefix(d, "--- previous\n+++ current\n"), d)
	require.Contains(t, d, "-3\n+4\n")
}
