// Package sandbox evaluates scripts in isolated goja runtimes.
//
// A Session owns two runtimes: one runs the script as written, the other runs
// the instrumented build and reports values through a per-session Sink. The
// Coordinator runs a Session on its own goroutine and enforces the overall
// time budget.
package sandbox

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/xtal-lab/xtal/internal/report"
)

//go:embed js/hook.js
var hookSource string

var compilePrelude = sync.OnceValues(func() (*goja.Program, error) {
	return goja.Compile("hook.js", hookSource, true)
})

// Options configures sessions and coordinators.
type Options struct {
	Timeout          time.Duration // overall budget, enforced by the Coordinator
	RawTimeout       time.Duration
	RunTimeout       time.Duration
	MaxCallStackSize int
	Hook             string
	SingleRun        bool // skip the raw run and trust the instrumented build
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		Timeout:          2 * time.Second,
		RawTimeout:       50 * time.Millisecond,
		RunTimeout:       time.Second,
		MaxCallStackSize: 500,
		Hook:             "__xtal__",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.RawTimeout <= 0 {
		o.RawTimeout = d.RawTimeout
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = d.RunTimeout
	}
	if o.MaxCallStackSize <= 0 {
		o.MaxCallStackSize = d.MaxCallStackSize
	}
	if o.Hook == "" {
		o.Hook = d.Hook
	}
	return o
}

// Script is the compiled form of one request.
type Script struct {
	// Diagnostics holds parse and compile errors. A script with diagnostics
	// never reaches the instrumented run.
	Diagnostics []string
	Raw         *goja.Program
	// Instrument produces the instrumented program. It is called at most once,
	// and only after the raw run succeeded.
	Instrument func() (*goja.Program, error)
}

// Result is what a session produced, in report order.
type Result struct {
	Events []report.Event
	Errors []string
}

// Session evaluates one script.
type Session struct {
	opts         Options
	raw          *goja.Runtime
	instrumented *goja.Runtime
	sink         *Sink
	handle       *Handle
}

// NewSession constructs both runtimes and installs the reporting hook.
func NewSession(opts Options) (*Session, error) {
	opts = opts.withDefaults()

	s := &Session{
		opts:         opts,
		raw:          newRuntime(opts, "raw"),
		instrumented: newRuntime(opts, "instrumented"),
		sink:         NewSink(),
	}
	if err := s.installHook(); err != nil {
		return nil, err
	}
	s.handle = newHandle(s.raw, s.instrumented)
	return s, nil
}

// Handle returns the termination handle for this session's runtimes.
func (s *Session) Handle() *Handle {
	return s.handle
}

// Sink returns the session's event sink.
func (s *Session) Sink() *Sink {
	return s.sink
}

func newRuntime(opts Options, name string) *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(opts.MaxCallStackSize)
	_ = vm.Set("console", consoleObject(vm, name))
	return vm
}

func consoleObject(vm *goja.Runtime, run string) *goja.Object {
	console := vm.NewObject()
	for _, method := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(method, func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.String()
			}
			slog.Debug("[Sandbox] console", "run", run, "method", method, "output", strings.Join(args, " "))
			return goja.Undefined()
		})
	}
	return console
}

func (s *Session) installHook() error {
	prelude, err := compilePrelude()
	if err != nil {
		return fmt.Errorf("failed to compile hook prelude: %w", err)
	}
	factory, err := s.instrumented.RunProgram(prelude)
	if err != nil {
		return fmt.Errorf("failed to run hook prelude: %w", err)
	}
	build, ok := goja.AssertFunction(factory)
	if !ok {
		return errors.New("hook prelude did not evaluate to a function")
	}
	hook, err := build(goja.Undefined(), s.sink.object(s.instrumented))
	if err != nil {
		return fmt.Errorf("failed to build hook: %w", err)
	}
	if err := s.instrumented.Set(s.opts.Hook, hook); err != nil {
		return fmt.Errorf("failed to bind hook %q: %w", s.opts.Hook, err)
	}
	return nil
}

// Run evaluates script: the raw program first, then, if nothing failed, the
// instrumented program. Errors are ordered parse, raw run, instrumented run.
func (s *Session) Run(script Script) Result {
	errs := append([]string(nil), script.Diagnostics...)

	if !s.opts.SingleRun && len(errs) == 0 && script.Raw != nil {
		if msg, failed := s.run(s.raw, script.Raw, "raw run", s.opts.RawTimeout); failed {
			errs = append(errs, msg)
		}
	}
	if len(errs) > 0 || s.handle.Terminated() || script.Instrument == nil {
		return Result{Errors: nonNil(errs)}
	}

	program, err := script.Instrument()
	if err != nil {
		return Result{Errors: append(errs, err.Error())}
	}
	if msg, failed := s.run(s.instrumented, program, "instrumented run", s.opts.RunTimeout); failed {
		errs = append(errs, msg)
	}
	errs = append(errs, s.sink.Failures()...)

	return Result{Events: s.sink.Events(), Errors: nonNil(errs)}
}

// run executes program under a sub-budget. It reports whether the run failed
// with an error that belongs in the diagnostics.
func (s *Session) run(vm *goja.Runtime, program *goja.Program, what string, budget time.Duration) (string, bool) {
	timer := time.AfterFunc(budget, func() {
		vm.Interrupt(budgetExceeded{what: what, budget: budget})
	})
	defer timer.Stop()

	_, err := vm.RunProgram(program)
	if err == nil {
		return "", false
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch v := interrupted.Value().(type) {
		case terminated:
			return "", false
		case budgetExceeded:
			slog.Warn("[Sandbox] Sub-budget exceeded", "run", what, "budget", budget)
			return v.String(), true
		}
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return "RangeError: Maximum call stack size exceeded" + overflow.Error(), true
	}
	return err.Error(), true
}

func nonNil(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}
