package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/outbox/internal/engine"
	"github.com/roach88/outbox/internal/netstate"
	"github.com/roach88/outbox/internal/payload"
	"github.com/roach88/outbox/internal/status"
	"github.com/roach88/outbox/internal/store"
	"github.com/roach88/outbox/internal/testutil"
)

// Harness is the scenario execution engine.
// It wires the real store, synchronizer and monitor around a fake clock
// and a scripted invoker.
type Harness struct {
	path   string
	clock  *testutil.FakeClock
	keys   *testutil.SequentialKeys
	logger *slog.Logger
	trace  *tracer

	invokeTimeout time.Duration
	resultWindow  time.Duration

	store   *store.Store
	board   *status.Board
	sync    *engine.Synchronizer
	monitor *netstate.Monitor
	invoker *scriptedInvoker

	// Context of the step in flight; a crash outcome cancels it.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh SQLite file in a temporary directory,
// removed on return. An error means the scenario could not be played at
// all; failed assertions are reported in the Result.
//
// Execution flow:
//  1. Open the store and wire synchronizer and monitor
//  2. Enqueue the scenario's entries
//  3. Play the steps
//  4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "outbox-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{
		path:          filepath.Join(dir, "queue.db"),
		clock:         testutil.NewFakeClock(time.Time{}),
		keys:          testutil.NewSequentialKeys("key"),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		trace:         &tracer{},
		invokeTimeout: engine.DefaultInvokeTimeout,
		resultWindow:  engine.DefaultResultWindow,
	}
	if scenario.InvokeTimeout != "" {
		h.invokeTimeout, _ = time.ParseDuration(scenario.InvokeTimeout)
	}
	if scenario.ResultWindow != "" {
		h.resultWindow, _ = time.ParseDuration(scenario.ResultWindow)
	}
	h.invoker = newScriptedInvoker(scenario.Outcomes, h.trace, h.abortStep)

	if err := h.open(scenario.StartOnline); err != nil {
		return nil, err
	}
	defer h.close()

	for i, e := range scenario.Entries {
		ctx := h.beginStep()
		if err := h.enqueue(ctx, "", e.Command, e.Args); err != nil {
			return nil, fmt.Errorf("entries[%d]: %w", i, err)
		}
	}

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Do, err)
		}
	}

	result := NewResult()
	result.Trace = h.trace.snapshot()
	result.Invocations = h.invoker.Invocations()

	actx := &AssertionContext{
		Store:       h.store,
		Board:       h.board,
		Invocations: result.Invocations,
		Ctx:         h.beginStep(),
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// open (re)opens the store and wires a synchronizer and monitor over it.
func (h *Harness) open(online bool) error {
	st, err := store.Open(h.path,
		store.WithNow(h.clock.Now),
		store.WithKeyGenerator(h.keys),
	)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	h.store = st
	h.board = &status.Board{}
	h.sync = engine.New(st, h.invoker,
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithRecorder(h.trace),
		engine.WithBoard(h.board),
		engine.WithInvokeTimeout(h.invokeTimeout),
		engine.WithResultWindow(h.resultWindow),
	)
	h.monitor = netstate.NewMonitor(st,
		netstate.WithInitialOnline(online),
		netstate.WithBoard(h.board),
		netstate.WithLogger(h.logger),
	)
	h.monitor.OnTransitionToOnline(func() {
		h.sync.Trigger(h.stepContext())
	})
	return nil
}

func (h *Harness) close() {
	h.abortStep()
	h.sync.Wait()
	h.store.Close()
}

// execute plays one step and traces the state it leaves behind.
func (h *Harness) execute(step Step) error {
	ctx := h.beginStep()

	switch step.Do {
	case StepEnqueue:
		h.trace.line("step enqueue")
		if err := h.enqueue(ctx, "  ", step.Command, step.Args); err != nil {
			return err
		}

	case StepOffline:
		h.trace.line("step offline")
		h.monitor.SetOnline(false)

	case StepOnline:
		h.trace.line("step online")
		h.monitor.SetOnline(true)
		h.awaitTriggered()

	case StepDrain:
		h.trace.line("step drain")
		var (
			report engine.Report
			err    error
		)
		done := make(chan struct{})
		go func() {
			defer close(done)
			report, err = h.sync.Drain(ctx)
		}()
		h.await(done)
		switch {
		case err != nil:
			h.trace.event("error: %v", err)
		case report.Attempted == 0:
			h.trace.event("nothing pending")
		}

	case StepTrigger:
		h.trace.line("step trigger")
		// A started drain traces itself; only a discarded trigger is noted.
		if !h.sync.Trigger(ctx) {
			h.trace.event("discarded")
		}
		h.awaitTriggered()

	case StepTick:
		h.trace.line("step tick")
		if err := h.reconcile(ctx); err != nil {
			return err
		}

	case StepRestart:
		h.trace.line("step restart")
		if err := h.restart(); err != nil {
			return err
		}

	case StepRequeue:
		h.trace.line("step requeue %d", step.ID)
		changed, err := h.store.Requeue(ctx, step.ID)
		if err != nil {
			return err
		}
		if changed {
			h.trace.event("requeued %d", step.ID)
		} else {
			h.trace.event("unchanged %d", step.ID)
		}

	case StepAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return err
		}
		h.trace.line("step advance %s", d)
		h.clock.Advance(d)

	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}

	snap := h.board.Snapshot()
	h.trace.event("status online=%t pending=%d last_result=%q",
		snap.Online, snap.PendingCount, snap.LastResult)
	return nil
}

func (h *Harness) enqueue(ctx context.Context, indent, command string, rawArgs any) error {
	args, err := payload.FromGo(rawArgs)
	if err != nil {
		return fmt.Errorf("failed to convert args: %w", err)
	}
	id, err := h.store.Enqueue(ctx, command, args)
	if err != nil {
		return err
	}
	data, err := payload.Marshal(args)
	if err != nil {
		return err
	}
	h.trace.line("%sentry %d %s %s", indent, id, command, data)
	return nil
}

// reconcile runs the monitor's tick and waits for the sync it requests.
func (h *Harness) reconcile(ctx context.Context) error {
	if err := h.monitor.Reconcile(ctx); err != nil {
		return err
	}
	h.awaitTriggered()
	return nil
}

// restart simulates a process restart: the store is reopened from disk,
// in-memory state (board, draining flag, timers) starts over, and startup
// reconciliation runs before the first tick.
func (h *Harness) restart() error {
	online := h.monitor.IsOnline()
	h.abortStep()
	h.sync.Wait()
	if err := h.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := h.open(online); err != nil {
		return err
	}

	ctx := h.beginStep()
	n, err := h.store.ResetSyncing(ctx)
	if err != nil {
		return err
	}
	h.trace.event("reset %d syncing", n)
	return h.reconcile(ctx)
}

// awaitTriggered waits for drains started by Trigger.
func (h *Harness) awaitTriggered() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.sync.Wait()
	}()
	h.await(done)
}

// await blocks until done is closed. A stalled invoke is resolved by
// advancing the clock by the invoke timeout.
func (h *Harness) await(done <-chan struct{}) {
	for {
		select {
		case <-h.invoker.stalls:
			h.trace.event("advance %s (invoke timeout)", h.invokeTimeout)
			h.clock.Advance(h.invokeTimeout)
		case <-done:
			return
		}
	}
}

func (h *Harness) beginStep() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h.ctx
}

func (h *Harness) stepContext() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}

func (h *Harness) abortStep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}
