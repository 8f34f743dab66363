package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/outbox/internal/payload"
	"github.com/roach88/outbox/internal/status"
	"github.com/roach88/outbox/internal/store"
)

// AssertionContext is the final state assertions are checked against.
type AssertionContext struct {
	Store       *store.Store
	Board       *status.Board
	Invocations []Invocation
	Ctx         context.Context
}

// AssertionError is returned when an assertion fails.
// It includes the invocations seen to help debug the failure.
type AssertionError struct {
	Type        string // Assertion type for categorization
	Expected    string // Human-readable expected outcome
	Actual      string // Human-readable actual outcome
	Invocations []Invocation
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Invocations) > 0 {
		fmt.Fprintf(&buf, "\nInvocations:\n")
		for i, inv := range e.Invocations {
			fmt.Fprintf(&buf, "  [%d] %s key=%s -> %s\n", i+1, inv.Command, inv.Key, inv.Outcome)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %s", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertStoreCount:
		return assertStoreCount(actx, a)
	case AssertEntryStatus:
		return assertEntryStatus(actx, a)
	case AssertInvokeOrder:
		return assertInvokeOrder(actx, a)
	case AssertInvokeCount:
		return assertInvokeCount(actx, a)
	case AssertPendingCount:
		return assertPendingCount(actx, a)
	case AssertLastResult:
		return assertLastResult(actx, a)
	case AssertPayloadEquals:
		return assertPayloadEquals(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertStoreCount counts stored entries, optionally of one status.
func assertStoreCount(actx *AssertionContext, a Assertion) error {
	counts, err := actx.Store.Counts(actx.Ctx)
	if err != nil {
		return err
	}

	got := counts.Total()
	if a.Status != "" {
		s, err := store.ParseStatus(a.Status)
		if err != nil {
			return err
		}
		switch s {
		case store.StatusPending:
			got = counts.Pending
		case store.StatusSyncing:
			got = counts.Syncing
		case store.StatusFailed:
			got = counts.Failed
		}
	}

	if got != a.Count {
		what := "entries"
		if a.Status != "" {
			what = a.Status + " entries"
		}
		return &AssertionError{
			Type:        AssertStoreCount,
			Expected:    fmt.Sprintf("%d %s", a.Count, what),
			Actual:      fmt.Sprintf("%d %s", got, what),
			Invocations: actx.Invocations,
		}
	}
	return nil
}

// assertEntryStatus checks one entry's status; "removed" expects it gone.
func assertEntryStatus(actx *AssertionContext, a Assertion) error {
	actual := statusRemoved
	e, err := actx.Store.Get(actx.Ctx, a.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		actual = string(e.Status)
	}

	if actual != a.Status {
		return &AssertionError{
			Type:        AssertEntryStatus,
			Expected:    fmt.Sprintf("entry %d %s", a.ID, a.Status),
			Actual:      fmt.Sprintf("entry %d %s", a.ID, actual),
			Invocations: actx.Invocations,
		}
	}
	return nil
}

// assertInvokeOrder requires the exact sequence of invoked commands.
func assertInvokeOrder(actx *AssertionContext, a Assertion) error {
	got := make([]string, len(actx.Invocations))
	for i, inv := range actx.Invocations {
		got[i] = inv.Command
	}

	if !slices.Equal(got, a.Commands) {
		return &AssertionError{
			Type:        AssertInvokeOrder,
			Expected:    fmt.Sprintf("%v", a.Commands),
			Actual:      fmt.Sprintf("%v", got),
			Invocations: actx.Invocations,
		}
	}
	return nil
}

// assertInvokeCount counts invocations, optionally of one command.
func assertInvokeCount(actx *AssertionContext, a Assertion) error {
	got := 0
	for _, inv := range actx.Invocations {
		if a.Command == "" || inv.Command == a.Command {
			got++
		}
	}

	if got != a.Count {
		what := "invocations"
		if a.Command != "" {
			what = a.Command + " invocations"
		}
		return &AssertionError{
			Type:        AssertInvokeCount,
			Expected:    fmt.Sprintf("%d %s", a.Count, what),
			Actual:      fmt.Sprintf("%d %s", got, what),
			Invocations: actx.Invocations,
		}
	}
	return nil
}

func assertPendingCount(actx *AssertionContext, a Assertion) error {
	got := actx.Board.Snapshot().PendingCount
	if got != a.Count {
		return &AssertionError{
			Type:     AssertPendingCount,
			Expected: fmt.Sprintf("published pending count %d", a.Count),
			Actual:   fmt.Sprintf("published pending count %d", got),
		}
	}
	return nil
}

func assertLastResult(actx *AssertionContext, a Assertion) error {
	got := actx.Board.Snapshot().LastResult
	if got != a.Value {
		return &AssertionError{
			Type:        AssertLastResult,
			Expected:    fmt.Sprintf("last result %q", a.Value),
			Actual:      fmt.Sprintf("last result %q", got),
			Invocations: actx.Invocations,
		}
	}
	return nil
}

// assertPayloadEquals compares the args of the n-th invocation by value:
// number literals compare numerically, object key order is irrelevant.
func assertPayloadEquals(actx *AssertionContext, a Assertion) error {
	if a.Index >= len(actx.Invocations) {
		return &AssertionError{
			Type:        AssertPayloadEquals,
			Expected:    fmt.Sprintf("invocation %d", a.Index),
			Actual:      fmt.Sprintf("%d invocations", len(actx.Invocations)),
			Invocations: actx.Invocations,
		}
	}

	want, err := payload.FromGo(a.Args)
	if err != nil {
		return fmt.Errorf("failed to convert expected args: %w", err)
	}
	got := actx.Invocations[a.Index].Args
	if !payload.Equal(want, got) {
		return &AssertionError{
			Type:        AssertPayloadEquals,
			Expected:    canonicalText(want),
			Actual:      canonicalText(got),
			Invocations: actx.Invocations,
		}
	}
	return nil
}

func canonicalText(v payload.Value) string {
	data, err := payload.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
