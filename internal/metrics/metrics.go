// Package metrics exposes outbox telemetry as Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/outbox/internal/engine"
	"github.com/roach88/outbox/internal/netstate"
)

var (
	_ engine.Recorder   = (*Recorder)(nil)
	_ netstate.Recorder = (*Recorder)(nil)
)

// Recorder owns the outbox collectors. It implements engine.Recorder and
// netstate.Recorder.
type Recorder struct {
	drains         prometheus.Counter
	entries        *prometheus.CounterVec
	invokeDuration prometheus.Histogram
	pending        prometheus.Gauge
	online         prometheus.Gauge
}

// NewRecorder creates unregistered collectors.
func NewRecorder() *Recorder {
	return &Recorder{
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_drains_total",
			Help: "Drains run by the synchronizer",
		}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_entries_total",
			Help: "Entries handled by drains, by outcome",
		}, []string{"outcome"}), // success|failure|rejected|stalled
		invokeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_invoke_duration_seconds",
			Help:    "Latency of remote invokes",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Entries waiting for the next drain",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_online",
			Help: "1 when the server is reachable",
		}),
	}
}

// Register registers the collectors on reg (or the default registerer if
// nil). Collectors registered before are accepted.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{r.drains, r.entries, r.invokeDuration, r.pending, r.online} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// ObserveDrain counts a finished drain.
func (r *Recorder) ObserveDrain(engine.Report) {
	r.drains.Inc()
}

// ObserveInvoke counts one entry outcome and its invoke latency.
func (r *Recorder) ObserveInvoke(outcome engine.Outcome, d time.Duration) {
	r.entries.WithLabelValues(string(outcome)).Inc()
	r.invokeDuration.Observe(d.Seconds())
}

// SetPending publishes the pending count.
func (r *Recorder) SetPending(n int) {
	r.pending.Set(float64(n))
}

// SetOnline publishes connectivity.
func (r *Recorder) SetOnline(online bool) {
	if online {
		r.online.Set(1)
		return
	}
	r.online.Set(0)
}

// Handler serves the metrics of g (or the default gatherer if nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
