package harness

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/outbox/internal/engine"
	"github.com/roach88/outbox/internal/payload"
)

// errScripted is returned by the scripted invoker for the "error" outcome.
var errScripted = errors.New("scripted failure")

// scriptedInvoker plays the scenario's outcomes.
//
// Thread-safety: calls arrive from drain goroutines; all state is guarded
// by mu.
type scriptedInvoker struct {
	outcomes map[string][]string
	trace    *tracer

	// stalls receives one value per stalled call; the runner answers by
	// advancing the fake clock past the invoke timeout.
	stalls chan struct{}

	// crash aborts the step in flight.
	crash func()

	mu          sync.Mutex
	consumed    map[string]int
	invocations []Invocation
}

var _ engine.Invoker = (*scriptedInvoker)(nil)

func newScriptedInvoker(outcomes map[string][]string, trace *tracer, crash func()) *scriptedInvoker {
	return &scriptedInvoker{
		outcomes: outcomes,
		trace:    trace,
		stalls:   make(chan struct{}),
		crash:    crash,
		consumed: make(map[string]int),
	}
}

// Invoke implements engine.Invoker.
func (s *scriptedInvoker) Invoke(ctx context.Context, commandName string, args payload.Value) (engine.Result, error) {
	key := engine.IdempotencyKey(ctx)
	outcome := s.next(commandName, args, key)
	s.trace.event("invoke %s key=%s -> %s", commandName, key, outcome)

	switch outcome {
	case OutcomeError:
		return engine.Result{}, errScripted
	case OutcomeReject:
		ok := false
		return engine.Result{Success: &ok}, nil
	case OutcomeStall:
		select {
		case s.stalls <- struct{}{}:
		case <-ctx.Done():
		}
		<-ctx.Done()
		return engine.Result{}, ctx.Err()
	case OutcomeCrash:
		s.crash()
		<-ctx.Done()
		return engine.Result{}, ctx.Err()
	default:
		return engine.Result{}, nil
	}
}

// next consumes the command's next outcome. The last outcome repeats.
func (s *scriptedInvoker) next(commandName string, args payload.Value, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := OutcomeSuccess
	if script := s.outcomes[commandName]; len(script) > 0 {
		i := s.consumed[commandName]
		if i >= len(script) {
			i = len(script) - 1
		}
		outcome = script[i]
		s.consumed[commandName]++
	}

	s.invocations = append(s.invocations, Invocation{
		Command: commandName,
		Args:    args,
		Key:     key,
		Outcome: outcome,
	})
	return outcome
}

// Invocations returns a copy of the calls received so far.
func (s *scriptedInvoker) Invocations() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invocation, len(s.invocations))
	copy(out, s.invocations)
	return out
}
