package netstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/outbox/internal/status"
)

const (
	// DefaultProbeInterval is how often Run checks reachability.
	DefaultProbeInterval = 5 * time.Second

	// DefaultReconcileInterval is how often Run re-reads the pending count.
	DefaultReconcileInterval = 30 * time.Second
)

// Observer answers "is the network reachable now" and reports reconnection.
type Observer interface {
	IsOnline() bool
	OnTransitionToOnline(callback func())
}

// Prober checks reachability. A nil error means online.
// remote.Client implements it with a health request.
type Prober interface {
	Probe(ctx context.Context) error
}

// PendingCounter is the part of the queue store the monitor reads.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// Recorder receives connectivity telemetry. metrics.Recorder implements it.
type Recorder interface {
	SetOnline(online bool)
	SetPending(n int)
}

var _ Observer = (*Monitor)(nil)

// Monitor is the Observer used by the daemon.
type Monitor struct {
	counter PendingCounter
	prober  Prober

	board             *status.Board
	recorder          Recorder
	logger            *slog.Logger
	probeInterval     time.Duration
	reconcileInterval time.Duration

	mu        sync.Mutex
	online    bool
	pending   int
	callbacks []func()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInitialOnline sets the connectivity assumed before the first probe.
func WithInitialOnline(online bool) Option {
	return func(m *Monitor) { m.online = online }
}

// WithProber sets the reachability check used by Run.
func WithProber(p Prober) Option {
	return func(m *Monitor) { m.prober = p }
}

// WithProbeInterval sets how often Run probes. Non-positive keeps the default.
func WithProbeInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeInterval = d
		}
	}
}

// WithReconcileInterval sets the reconciliation tick. Non-positive keeps the
// default.
func WithReconcileInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.reconcileInterval = d
		}
	}
}

// WithBoard publishes online and pending count to b.
func WithBoard(b *status.Board) Option {
	return func(m *Monitor) {
		if b != nil {
			m.board = b
		}
	}
}

// WithRecorder attaches connectivity telemetry.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonitor creates a Monitor reading pending counts from counter.
func NewMonitor(counter PendingCounter, opts ...Option) *Monitor {
	m := &Monitor{
		counter:           counter,
		board:             &status.Board{},
		logger:            slog.Default(),
		probeInterval:     DefaultProbeInterval,
		reconcileInterval: DefaultReconcileInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.publishOnline(m.online)
	return m
}

// IsOnline reports the current connectivity.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// PendingCount returns the count read by the last reconciliation.
func (m *Monitor) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// OnTransitionToOnline registers a callback run on every offline→online
// transition and on reconciliation ticks that find pending work while
// online. Callbacks run on the notifying goroutine and must not block.
func (m *Monitor) OnTransitionToOnline(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// SetOnline records a connectivity event. Only a false→true change runs
// the callbacks; repeated events with the same value are ignored.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	callbacks := m.snapshotCallbacks()
	m.mu.Unlock()

	m.publishOnline(online)
	if was == online {
		return
	}
	if !online {
		m.logger.Info("connectivity lost")
		return
	}
	m.logger.Info("connectivity restored")
	notify(callbacks)
}

// Probe runs the prober once and records the result. Without a prober it
// does nothing.
func (m *Monitor) Probe(ctx context.Context) {
	if m.prober == nil {
		return
	}
	err := m.prober.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug("probe failed", "error", err)
	}
	m.SetOnline(err == nil)
}

// Reconcile re-reads the pending count and publishes it. While online with
// pending entries it also runs the callbacks.
func (m *Monitor) Reconcile(ctx context.Context) error {
	n, err := m.counter.CountPending(ctx)
	if err != nil {
		m.logger.Error("reconcile: count pending", "error", err)
		return err
	}

	m.mu.Lock()
	m.pending = n
	online := m.online
	callbacks := m.snapshotCallbacks()
	m.mu.Unlock()

	m.board.SetPendingCount(n)
	if m.recorder != nil {
		m.recorder.SetPending(n)
	}
	if online && n > 0 {
		m.logger.Debug("reconcile: requesting sync", "pending", n)
		notify(callbacks)
	}
	return nil
}

// Run probes and reconciles until ctx is cancelled.
//
// The first probe only initializes the online flag; it is not treated as a
// transition. The reconciliation that follows immediately picks up entries
// left from a previous run.
func (m *Monitor) Run(ctx context.Context) error {
	if m.prober != nil {
		online := m.prober.Probe(ctx) == nil
		m.mu.Lock()
		m.online = online
		m.mu.Unlock()
		m.publishOnline(online)
		m.logger.Info("monitor started", "online", online)
	}
	_ = m.Reconcile(ctx)

	var probeC <-chan time.Time
	if m.prober != nil {
		probe := time.NewTicker(m.probeInterval)
		defer probe.Stop()
		probeC = probe.C
	}
	reconcile := time.NewTicker(m.reconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping: context cancelled")
			return ctx.Err()
		case <-probeC:
			m.Probe(ctx)
		case <-reconcile.C:
			_ = m.Reconcile(ctx)
		}
	}
}

func (m *Monitor) publishOnline(online bool) {
	m.board.SetOnline(online)
	if m.recorder != nil {
		m.recorder.SetOnline(online)
	}
}

// snapshotCallbacks copies the callback list. Caller holds mu.
func (m *Monitor) snapshotCallbacks() []func() {
	out := make([]func(), len(m.callbacks))
	copy(out, m.callbacks)
	return out
}

func notify(callbacks []func()) {
	for _, cb := range callbacks {
		cb()
	}
}
