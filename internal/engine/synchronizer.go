package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/outbox/internal/status"
	"github.com/roach88/outbox/internal/store"
)

const (
	// DefaultInvokeTimeout bounds a single Invoke call.
	DefaultInvokeTimeout = 30 * time.Second

	// DefaultResultWindow is how long LastResult stays "success".
	DefaultResultWindow = 5 * time.Second
)

// errInvokeTimeout is the cancel cause set when the invoke timeout fires.
var errInvokeTimeout = errors.New("invoke timed out")

// Queue is the part of the queue store the synchronizer uses.
// *store.Store implements it.
type Queue interface {
	ListPending(ctx context.Context) ([]store.Entry, error)
	MarkSyncing(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	Remove(ctx context.Context, id int64) error
	CountPending(ctx context.Context) (int, error)
}

// Synchronizer drains the queue through an Invoker.
//
// Thread-safety model:
//   - Trigger, Drain, IsDraining: safe from any goroutine
//   - at most one drain runs at a time; the draining flag is the only lock
//     around the queue
type Synchronizer struct {
	queue   Queue
	invoker Invoker

	clock         Clock
	logger        *slog.Logger
	recorder      Recorder
	board         *status.Board
	invokeTimeout time.Duration
	resultWindow  time.Duration

	draining atomic.Bool
	wg       sync.WaitGroup

	// Guards the result-window timer.
	mu          sync.Mutex
	resultGen   uint64
	clearResult func() bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithInvokeTimeout bounds each Invoke call. Default: 30s.
// A non-positive value keeps the default.
func WithInvokeTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.invokeTimeout = d
		}
	}
}

// WithResultWindow sets how long LastResult stays "success". Default: 5s.
func WithResultWindow(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.resultWindow = d
		}
	}
}

// WithClock replaces the wall clock (tests use testutil.FakeClock).
func WithClock(c Clock) Option {
	return func(s *Synchronizer) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder attaches drain telemetry.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithBoard publishes draining, pending count and last result to b.
// Without it the synchronizer keeps a private board (see Board).
func WithBoard(b *status.Board) Option {
	return func(s *Synchronizer) {
		if b != nil {
			s.board = b
		}
	}
}

// New creates a Synchronizer over q that delivers entries through inv.
func New(q Queue, inv Invoker, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		queue:         q,
		invoker:       inv,
		clock:         realClock{},
		logger:        slog.Default(),
		recorder:      nopRecorder{},
		board:         &status.Board{},
		invokeTimeout: DefaultInvokeTimeout,
		resultWindow:  DefaultResultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Board returns the status board the synchronizer publishes to.
func (s *Synchronizer) Board() *status.Board {
	return s.board
}

// IsDraining reports whether a drain is in progress.
func (s *Synchronizer) IsDraining() bool {
	return s.draining.Load()
}

// Trigger starts a drain in the background and returns immediately.
//
// It reports whether a drain was started. Nothing starts when no entry is
// pending or when a drain is already running; the trigger is discarded in
// both cases. Errors of the background drain are logged.
func (s *Synchronizer) Trigger(ctx context.Context) bool {
	if !s.acquire(ctx) {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()

		if _, err := s.drain(ctx); err != nil {
			s.logger.Error("drain aborted", "error", err)
		}
	}()
	return true
}

// Wait blocks until every drain started by Trigger has returned.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Drain runs one drain on the calling goroutine.
//
// With nothing pending it returns a zero Report without touching the
// draining flag. While another drain runs it returns ErrAlreadyDraining.
// Per-entry failures are reported in the Report, never as an error; the
// error is reserved for storage failures and ctx cancellation.
func (s *Synchronizer) Drain(ctx context.Context) (Report, error) {
	pending, err := s.queue.CountPending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("drain: %w", err)
	}
	if pending == 0 {
		s.publishPending(0)
		return Report{}, nil
	}
	if !s.draining.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyDraining
	}
	s.board.SetDraining(true)
	defer s.release()

	return s.drain(ctx)
}

// acquire checks for pending work and takes the draining flag.
func (s *Synchronizer) acquire(ctx context.Context) bool {
	pending, err := s.queue.CountPending(ctx)
	if err != nil {
		s.logger.Error("trigger: count pending", "error", err)
		return false
	}
	if pending == 0 {
		s.publishPending(0)
		return false
	}
	if !s.draining.CompareAndSwap(false, true) {
		s.logger.Debug("trigger discarded: drain in progress")
		return false
	}
	s.board.SetDraining(true)
	return true
}

// release clears the board before the flag so a drain starting right after
// cannot have its Draining=true overwritten.
func (s *Synchronizer) release() {
	s.board.SetDraining(false)
	s.draining.Store(false)
}

// drain processes one snapshot of pending entries. Caller holds the flag.
func (s *Synchronizer) drain(ctx context.Context) (Report, error) {
	start := s.clock.Now()
	var report Report

	entries, err := s.queue.ListPending(ctx)
	if err != nil {
		return s.finish(report, start, fmt.Errorf("drain: %w", err))
	}
	s.logger.Info("drain started", "entries", len(entries))

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return s.finish(report, start, fmt.Errorf("drain: %w", err))
		}

		outcome, err := s.syncEntry(ctx, e)
		if err != nil {
			return s.finish(report, start, err)
		}

		report.Attempted++
		switch outcome {
		case OutcomeSuccess:
			report.Succeeded++
		case OutcomeStalled:
			report.Stalled++
			report.Failed++
		default:
			report.Failed++
		}
	}

	return s.finish(report, start, nil)
}

// finish refreshes the pending count, publishes the outcome and returns
// report with err. The count runs detached from the drain context, which may
// already be cancelled.
func (s *Synchronizer) finish(report Report, start time.Time, err error) (Report, error) {
	if pending, cerr := s.queue.CountPending(context.Background()); cerr == nil {
		report.Pending = pending
		s.publishPending(pending)
	} else if err == nil {
		err = fmt.Errorf("drain: %w", cerr)
	}

	report.Duration = s.clock.Now().Sub(start)
	if report.Succeeded > 0 {
		s.flashSuccess()
	}
	s.board.RecordDrain(s.clock.Now(), err)
	s.recorder.ObserveDrain(report)

	s.logger.Info("drain finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"stalled", report.Stalled,
		"pending", report.Pending,
		"duration", report.Duration,
	)
	return report, err
}

// syncEntry delivers one entry and records its outcome in the queue.
//
// A non-nil error means the drain must stop: storage failed or ctx was
// cancelled. In the latter case the entry stays syncing until the next
// startup reconciliation.
func (s *Synchronizer) syncEntry(ctx context.Context, e store.Entry) (Outcome, error) {
	if err := s.queue.MarkSyncing(ctx, e.ID); err != nil {
		return "", fmt.Errorf("drain: entry %d: %w", e.ID, err)
	}

	began := s.clock.Now()
	res, err := s.invoke(ctx, e)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Warn("drain cancelled mid-invoke",
			"entry_id", e.ID,
			"command", e.CommandName,
		)
		return "", fmt.Errorf("drain: entry %d: %w", e.ID, ctxErr)
	}

	entryErr := classify(e, res, err)
	outcome := OutcomeSuccess
	if entryErr != nil {
		outcome = outcomeOf(entryErr)
	}
	s.recorder.ObserveInvoke(outcome, s.clock.Now().Sub(began))

	if entryErr == nil {
		if err := s.queue.Remove(ctx, e.ID); err != nil {
			return "", fmt.Errorf("drain: entry %d: %w", e.ID, err)
		}
		s.logger.Debug("entry synced", "entry_id", e.ID, "command", e.CommandName)
		return outcome, nil
	}

	if err := s.queue.MarkFailed(ctx, e.ID, entryErr.Error()); err != nil {
		return "", fmt.Errorf("drain: entry %d: %w", e.ID, err)
	}
	s.logger.Warn("entry failed",
		"entry_id", e.ID,
		"command", e.CommandName,
		"outcome", string(outcome),
		"error", entryErr,
	)
	return outcome, nil
}

// invoke calls the invoker under the invoke timeout. An invoker that ignores
// its context is abandoned when the timeout fires; its goroutine finishes
// into a buffered channel nobody reads.
func (s *Synchronizer) invoke(ctx context.Context, e store.Entry) (Result, error) {
	ictx, cancel := context.WithCancelCause(WithIdempotencyKey(ctx, e.IdempotencyKey))
	defer cancel(nil)

	stop := s.clock.AfterFunc(s.invokeTimeout, func() { cancel(errInvokeTimeout) })
	defer stop()

	type settled struct {
		res Result
		err error
	}
	done := make(chan settled, 1)
	go func() {
		res, err := s.invoker.Invoke(ictx, e.CommandName, e.Args)
		done <- settled{res, err}
	}()

	// A settled answer wins over a timeout that fired at the same moment.
	settle := func(r settled) (Result, error) {
		if r.err != nil && errors.Is(context.Cause(ictx), errInvokeTimeout) {
			return Result{}, s.stalled()
		}
		return r.res, r.err
	}

	select {
	case r := <-done:
		return settle(r)
	case <-ictx.Done():
		select {
		case r := <-done:
			return settle(r)
		default:
		}
		if errors.Is(context.Cause(ictx), errInvokeTimeout) {
			return Result{}, s.stalled()
		}
		return Result{}, ictx.Err()
	}
}

func (s *Synchronizer) stalled() error {
	return &EntryError{
		Code: ErrCodeStalled,
		Err:  fmt.Errorf("no result within %s", s.invokeTimeout),
	}
}

// classify turns an invoke result into nil (success) or an EntryError.
func classify(e store.Entry, res Result, err error) *EntryError {
	var ee *EntryError
	switch {
	case errors.As(err, &ee):
		ee.EntryID, ee.CommandName = e.ID, e.CommandName
		return ee
	case err != nil:
		return &EntryError{Code: ErrCodeRemoteFailure, EntryID: e.ID, CommandName: e.CommandName, Err: err}
	case !res.Succeeded():
		return &EntryError{
			Code:        ErrCodeRejected,
			EntryID:     e.ID,
			CommandName: e.CommandName,
			Err:         errors.New("remote reported success=false"),
		}
	}
	return nil
}

func outcomeOf(ee *EntryError) Outcome {
	switch ee.Code {
	case ErrCodeStalled:
		return OutcomeStalled
	case ErrCodeRejected:
		return OutcomeRejected
	default:
		return OutcomeFailure
	}
}

func (s *Synchronizer) publishPending(n int) {
	s.board.SetPendingCount(n)
	s.recorder.SetPending(n)
}

// flashSuccess sets LastResult and schedules its clearing. A newer success
// restarts the window.
func (s *Synchronizer) flashSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clearResult != nil {
		s.clearResult()
	}
	s.resultGen++
	gen := s.resultGen
	s.board.SetLastResult(status.ResultSuccess)

	s.clearResult = s.clock.AfterFunc(s.resultWindow, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.resultGen == gen {
			s.board.SetLastResult("")
		}
	})
}
