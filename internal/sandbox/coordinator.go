package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xtal-lab/xtal/internal/report"
)

// Outcome is the result of a coordinated run.
type Outcome struct {
	Events   []report.Event
	Errors   []string
	TimedOut bool
}

// Coordinator runs each script on a dedicated worker goroutine and bounds the
// wait for its result.
type Coordinator struct {
	opts Options
}

// NewCoordinator creates a coordinator. Zero option fields take their defaults.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Coordinator) Options() Options {
	return c.opts
}

// Run evaluates script and returns once the worker has finished. If the
// budget elapses or ctx ends first, the worker's runtimes are terminated and
// Run waits for the partial result.
func (c *Coordinator) Run(ctx context.Context, script Script) Outcome {
	handles := make(chan *Handle, 1)
	results := make(chan Result, 1)

	go c.work(script, handles, results)

	handle := <-handles

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	var reason string
	select {
	case res := <-results:
		return Outcome{Events: res.Events, Errors: res.Errors}
	case <-timer.C:
		reason = fmt.Sprintf("TimeoutError: evaluation exceeded %s", c.opts.Timeout)
	case <-ctx.Done():
		reason = fmt.Sprintf("evaluation cancelled: %v", ctx.Err())
	}

	handle.Terminate(reason)
	res := <-results
	slog.Warn("[Sandbox] Evaluation terminated", "reason", reason, "events", len(res.Events))

	return Outcome{
		Events:   res.Events,
		Errors:   append(res.Errors, reason),
		TimedOut: true,
	}
}

// work publishes the session handle before evaluating and always sends
// exactly one handle and one result.
func (c *Coordinator) work(script Script, handles chan<- *Handle, results chan<- Result) {
	published := false
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Sandbox] Worker panicked", "panic", r)
			if !published {
				handles <- nil
			}
			errs := append([]string(nil), script.Diagnostics...)
			results <- Result{Errors: append(errs, fmt.Sprintf("internal error: %v", r))}
		}
	}()

	session, err := NewSession(c.opts)
	if err != nil {
		handles <- nil
		published = true
		errs := append([]string(nil), script.Diagnostics...)
		results <- Result{Errors: append(errs, err.Error())}
		return
	}

	handles <- session.Handle()
	published = true

	results <- session.Run(script)
}
