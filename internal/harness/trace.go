package harness

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/outbox/internal/engine"
)

// tracer collects trace lines. Steps are flush left; the events they cause
// are indented by two spaces.
//
// It doubles as the synchronizer's Recorder so every finished drain shows
// up in the trace.
type tracer struct {
	mu    sync.Mutex
	lines []string
}

var _ engine.Recorder = (*tracer)(nil)

func (t *tracer) line(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *tracer) event(format string, args ...any) {
	t.line("  "+format, args...)
}

func (t *tracer) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// ObserveDrain implements engine.Recorder.
func (t *tracer) ObserveDrain(r engine.Report) {
	t.event("drain attempted=%d succeeded=%d failed=%d stalled=%d pending=%d",
		r.Attempted, r.Succeeded, r.Failed, r.Stalled, r.Pending)
}

// ObserveInvoke implements engine.Recorder. Invocations are traced by the
// scripted invoker instead.
func (t *tracer) ObserveInvoke(engine.Outcome, time.Duration) {}

// SetPending implements engine.Recorder. The pending count is traced in the
// status line that ends each step.
func (t *tracer) SetPending(int) {}
