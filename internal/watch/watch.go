// Package watch re-evaluates a script file whenever it changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/xtal-lab/xtal/internal/evaluation"
)

// Evaluator runs one evaluation request.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Outcome, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, req evaluation.Request) (*evaluation.Outcome, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Outcome, error) {
	return f(ctx, req)
}

// Update is emitted after each evaluation of the watched file.
type Update struct {
	Path    string
	Outcome *evaluation.Outcome
	// Diff is a unified diff of the result against the previous update.
	// It is empty for the first update and when the result did not change.
	Diff string
	Err  error
}

// Watcher re-evaluates a single file after writes settle for the debounce window.
type Watcher struct {
	path     string
	dir      string
	eval     Evaluator
	debounce time.Duration
	previous *string
}

// New creates a watcher for path. The file must exist.
func New(path string, eval Evaluator, debounce time.Duration) (*Watcher, error) {
	if eval == nil {
		return nil, errors.New("watch: evaluator must not be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &Watcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		eval:     eval,
		debounce: debounce,
	}, nil
}

// Run evaluates the file once, then again after every settled change, until
// ctx is done. emit is called from Run's goroutine.
func (w *Watcher) Run(ctx context.Context, emit func(Update)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	// Editors often replace the file by rename, which drops a watch on the
	// file itself, so the parent directory is watched.
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	slog.Info("[Watch] Watching file", "path", w.path, "debounce", w.debounce)

	emit(w.evaluate(ctx))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var settled <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			slog.Info("[Watch] Stopped", "path", w.path)
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("[Watch] Change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
			settled = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("[Watch] Watcher error", "error", err)

		case <-settled:
			settled = nil
			if _, err := os.Stat(w.path); err != nil {
				slog.Debug("[Watch] File missing after change, waiting", "path", w.path, "error", err)
				continue
			}
			emit(w.evaluate(ctx))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) evaluate(ctx context.Context) Update {
	u := Update{Path: w.path}
	src, err := os.ReadFile(w.path)
	if err != nil {
		u.Err = fmt.Errorf("failed to read %s: %w", w.path, err)
		return u
	}
	out, err := w.eval.Evaluate(ctx, evaluation.Request{
		SourceText: string(src),
		Name:       filepath.Base(w.path),
	})
	if err != nil {
		u.Err = err
		return u
	}
	u.Outcome = out
	if w.previous != nil {
		u.Diff = Diff(*w.previous, out.Result)
	}
	w.previous = &out.Result
	return u
}

// Diff returns a unified diff between two result blobs, or "" when they are equal.
func Diff(previous, current string) string {
	if previous == current {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: "previous",
		ToFile:   "current",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("-%q\n+%q\n", previous, current)
	}
	return text
}
