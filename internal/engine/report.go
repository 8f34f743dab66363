package engine

import "time"

// Outcome is the classification of one invoke.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeRejected Outcome = "rejected"
	OutcomeStalled  Outcome = "stalled"
)

// Report summarizes one drain.
//
// Failed counts every entry that ended up failed; Stalled is the subset that
// timed out. Pending is CountPending as re-read after the last entry.
type Report struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Stalled   int           `json:"stalled"`
	Pending   int           `json:"pending"`
	Duration  time.Duration `json:"duration"`
}

// Recorder receives drain telemetry. metrics.Recorder implements it.
type Recorder interface {
	ObserveDrain(r Report)
	ObserveInvoke(outcome Outcome, d time.Duration)
	SetPending(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDrain(Report) {}
func (nopRecorder) ObserveInvoke(Outcome, time.Duration) {}
func (nopRecorder) SetPending(int) {}
