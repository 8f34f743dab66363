package engine

import "time"

// Clock abstracts wall time for the synchronizer.
//
// AfterFunc calls f in its own goroutine once d has elapsed and returns a
// function that cancels the call; stop reports whether it prevented f from
// running. testutil.FakeClock implements Clock for deterministic tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// realClock is the production Clock backed by package time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
