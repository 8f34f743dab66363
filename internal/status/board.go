package status

import (
	"sync"
	"time"
)

// ResultSuccess is the only non-empty value of Snapshot.LastResult.
const ResultSuccess = "success"

// Snapshot is a point-in-time copy of the board.
type Snapshot struct {
	Online       bool      `json:"online"`
	PendingCount int       `json:"pending_count"`
	Draining     bool      `json:"draining"`
	LastResult   string    `json:"last_result,omitempty"`
	LastDrain    time.Time `json:"last_drain,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Board coordinates concurrent updates to the snapshot.
type Board struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// SetOnline records the current connectivity.
func (b *Board) SetOnline(online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.Online = online
}

// SetPendingCount records the latest pending cardinality.
func (b *Board) SetPendingCount(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.PendingCount = n
}

// SetDraining records whether a drain is in progress.
func (b *Board) SetDraining(draining bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.Draining = draining
}

// SetLastResult sets or clears (empty string) the transient result flag.
func (b *Board) SetLastResult(result string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.LastResult = result
}

// RecordDrain stamps the end of a drain. A nil err clears LastError.
func (b *Board) RecordDrain(at time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.LastDrain = at
	if err != nil {
		b.snapshot.LastError = err.Error()
	} else {
		b.snapshot.LastError = ""
	}
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}
