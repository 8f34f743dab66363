package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/outbox/internal/payload"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	// StatusPending entries are waiting for the next drain.
	StatusPending Status = "pending"
	// StatusSyncing entries have been handed to the invoker and await an outcome.
	StatusSyncing Status = "syncing"
	// StatusFailed entries were rejected or errored. Terminal until Requeue.
	StatusFailed Status = "failed"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusSyncing, StatusFailed}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q: must be one of %v", s, Statuses)
}

// Entry is one queued command.
//
// CommandName, Args, CreatedAt, IdempotencyKey and Fingerprint are fixed at
// enqueue time. Status, Attempts, LastError and UpdatedAt change as the
// entry moves through drains.
type Entry struct {
	ID             int64         `json:"id"`
	CommandName    string        `json:"command_name"`
	Args           payload.Value `json:"args"`
	CreatedAt      time.Time     `json:"created_at"`
	Status         Status        `json:"status"`
	IdempotencyKey string        `json:"idempotency_key"`
	Fingerprint    string        `json:"fingerprint"`
	Attempts       int           `json:"attempts"`
	LastError      string        `json:"last_error,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Filter narrows List. The zero value lists every entry.
type Filter struct {
	Status Status // empty matches all statuses
	Limit  int    // zero means no limit
}

// Counts holds per-status cardinalities.
type Counts struct {
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Failed  int `json:"failed"`
}

// Total returns the number of entries in the store.
func (c Counts) Total() int {
	return c.Pending + c.Syncing + c.Failed
}

var (
	// ErrStorageUnavailable wraps every failure of the underlying database.
	ErrStorageUnavailable = errors.New("queue storage unavailable")

	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("queue entry not found")

	// ErrInvalidCommand is returned by Enqueue for an empty command name.
	ErrInvalidCommand = errors.New("invalid command name")
)

// unavailable marks err as a storage failure of op.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func notFound(op string, id int64) error {
	return fmt.Errorf("%s: %w: id %d", op, ErrNotFound, id)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
