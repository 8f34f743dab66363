package engine

import (
	"errors"
	"fmt"
)

// ErrAlreadyDraining is returned by Drain when another drain holds the
// draining flag. The call is discarded, not queued.
var ErrAlreadyDraining = errors.New("drain already in progress")

// EntryErrorCode categorizes why a single entry failed to sync.
type EntryErrorCode string

const (
	// ErrCodeRemoteFailure indicates the invoker returned an error.
	ErrCodeRemoteFailure EntryErrorCode = "REMOTE_FAILURE"

	// ErrCodeRejected indicates the invoker answered with success=false.
	ErrCodeRejected EntryErrorCode = "REJECTED"

	// ErrCodeStalled indicates the invoker did not answer within the invoke
	// timeout.
	ErrCodeStalled EntryErrorCode = "STALLED"
)

// EntryError describes the failure of one entry within a drain.
//
// EntryErrors never escape Drain. They are logged, passed to the Recorder
// and their text is stored as the entry's last error.
type EntryError struct {
	Code        EntryErrorCode
	EntryID     int64
	CommandName string
	Err         error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: entry %d (%s)", e.Code, e.EntryID, e.CommandName)
	}
	return fmt.Sprintf("%s: entry %d (%s): %v", e.Code, e.EntryID, e.CommandName, e.Err)
}

// Unwrap returns the underlying invoker error.
func (e *EntryError) Unwrap() error {
	return e.Err
}

// IsStalled reports whether err is an EntryError for a timed-out invoke.
func IsStalled(err error) bool {
	var ee *EntryError
	return errors.As(err, &ee) && ee.Code == ErrCodeStalled
}

// IsRejected reports whether err is an EntryError for an explicit
// success=false answer.
func IsRejected(err error) bool {
	var ee *EntryError
	return errors.As(err, &ee) && ee.Code == ErrCodeRejected
}
