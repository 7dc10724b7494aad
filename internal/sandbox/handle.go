package sandbox

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// Handle terminates the runtimes of one session from another goroutine.
// A nil Handle is valid and does nothing.
type Handle struct {
	once       sync.Once
	terminated atomic.Bool
	runtimes   []*goja.Runtime
}

func newHandle(runtimes ...*goja.Runtime) *Handle {
	return &Handle{runtimes: runtimes}
}

// Terminate interrupts every runtime of the session. Only the first call has
// an effect; it reports whether this call was the one that terminated.
func (h *Handle) Terminate(reason string) bool {
	if h == nil {
		return false
	}
	fired := false
	h.once.Do(func() {
		fired = true
		h.terminated.Store(true)
		for _, vm := range h.runtimes {
			vm.Interrupt(terminated{reason: reason})
		}
	})
	return fired
}

// Terminated reports whether Terminate has been called.
func (h *Handle) Terminated() bool {
	return h != nil && h.terminated.Load()
}

// terminated is the interrupt value of a Handle termination. The coordinator
// records the reason itself, so sessions drop it.
type terminated struct {
	reason string
}

func (t terminated) String() string {
	return t.reason
}

// budgetExceeded is the interrupt value of a run sub-budget.
type budgetExceeded struct {
	what   string
	budget time.Duration
}

func (b budgetExceeded) String() string {
	return fmt.Sprintf("TimeoutError: %s exceeded %s", b.what, b.budget)
}
