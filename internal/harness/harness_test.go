package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/outbox/internal/payload"
)

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "One entry, one drain",
		StartOnline: true,
		Entries: []EntrySpec{
			{Command: "recordSale", Args: map[string]any{"amount": 1}},
		},
		Steps: []Step{{Do: StepDrain}},
		Assertions: []Assertion{
			{Type: AssertStoreCount, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Invocations, 1)

	inv := result.Invocations[0]
	assert.Equal(t, "recordSale", inv.Command)
	assert.Equal(t, "key-1", inv.Key)
	assert.Equal(t, OutcomeSuccess, inv.Outcome)
	assert.True(t, payload.Equal(payload.Object{"amount": payload.Int(1)}, inv.Args))
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "Assertions that do not hold",
		Entries: []EntrySpec{
			{Command: "recordSale", Args: map[string]any{"amount": 1}},
		},
		Steps: []Step{{Do: StepTick}},
		Assertions: []Assertion{
			{Type: AssertInvokeCount, Count: 1},
			{Type: AssertEntryStatus, ID: 1, Status: statusRemoved},
			{Type: AssertPendingCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "invoke_count")
	assert.Contains(t, result.Errors[1], "entry 1 pending")
}

func TestRun_OutcomesRepeatLast(t *testing.T) {
	scenario := &Scenario{
		Name:        "repeat",
		Description: "The last scripted outcome repeats",
		StartOnline: true,
		Entries: []EntrySpec{
			{Command: "ping"},
			{Command: "ping"},
			{Command: "ping"},
			{Command: "other"},
		},
		Outcomes: map[string][]string{"ping": {OutcomeSuccess, OutcomeReject}},
		Steps:    []Step{{Do: StepDrain}},
		Assertions: []Assertion{
			{Type: AssertStoreCount, Status: "failed", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var outcomes []string
	for _, inv := range result.Invocations {
		outcomes = append(outcomes, inv.Outcome)
	}
	assert.Equal(t, []string{OutcomeSuccess, OutcomeReject, OutcomeReject, OutcomeSuccess}, outcomes)
}

func TestRun_StallUsesScenarioTimeout(t *testing.T) {
	scenario := &Scenario{
		Name:          "stall",
		Description:   "A stalled invoke is given up after the invoke timeout",
		StartOnline:   true,
		InvokeTimeout: "2s",
		Entries:       []EntrySpec{{Command: "ping"}},
		Outcomes:      map[string][]string{"ping": {OutcomeStall}},
		Steps:         []Step{{Do: StepTrigger}},
		Assertions: []Assertion{
			{Type: AssertEntryStatus, ID: 1, Status: "failed"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace, "  advance 2s (invoke timeout)")
	assert.Contains(t, result.Trace, "  drain attempted=1 succeeded=0 failed=1 stalled=1 pending=0")
}

func TestRun_CrashLeavesEntrySyncing(t *testing.T) {
	scenario := &Scenario{
		Name:        "crash",
		Description: "A crash mid-invoke leaves the entry syncing",
		StartOnline: true,
		Entries:     []EntrySpec{{Command: "ping"}, {Command: "ping"}},
		Outcomes:    map[string][]string{"ping": {OutcomeCrash}},
		Steps:       []Step{{Do: StepTrigger}},
		Assertions: []Assertion{
			{Type: AssertEntryStatus, ID: 1, Status: "syncing"},
			{Type: AssertEntryStatus, ID: 2, Status: "pending"},
			{Type: AssertInvokeCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RequeueUnknownEntry(t *testing.T) {
	scenario := &Scenario{
		Name:        "requeue_unknown",
		Description: "Requeue of an id that never existed",
		Steps:       []Step{{Do: StepRequeue, ID: 99}},
		Assertions:  []Assertion{{Type: AssertStoreCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0] (requeue)")
}

func TestRun_InvalidArgs(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_args",
		Description: "Args that have no payload form",
		Entries:     []EntrySpec{{Command: "ping", Args: struct{}{}}},
		Steps:       []Step{{Do: StepDrain}},
		Assertions:  []Assertion{{Type: AssertStoreCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entries[0]")
}
