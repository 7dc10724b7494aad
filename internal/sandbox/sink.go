package sandbox

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/xtal-lab/xtal/internal/report"
)

// Sink collects the events reported by one instrumented run.
type Sink struct {
	mu       sync.Mutex
	events   []report.Event
	failures []string
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Report decodes a JSON payload and records it for line.
func (s *Sink) Report(line int, payload string) error {
	value, err := report.Decode([]byte(payload))
	if err != nil {
		return fmt.Errorf("failed to decode value reported on line %d: %w", line, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, report.Event{Line: line, Value: value})
	return nil
}

// Fail records a rejected hook argument.
func (s *Sink) Fail(line int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, "Uncaught (in promise) "+reason)
}

// Events returns the events in report order.
func (s *Sink) Events() []report.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Event(nil), s.events...)
}

// Failures returns the recorded rejections in report order.
func (s *Sink) Failures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failures...)
}

// object exposes the sink to script code as {report, fail}.
func (s *Sink) object(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("report", func(call goja.FunctionCall) goja.Value {
		line := int(call.Argument(0).ToInteger())
		if err := s.Report(line, call.Argument(1).String()); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set("fail", func(call goja.FunctionCall) goja.Value {
		s.Fail(int(call.Argument(0).ToInteger()), call.Argument(1).String())
		return goja.Undefined()
	})
	return obj
}
