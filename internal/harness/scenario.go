package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/outbox/internal/store"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StartOnline is the connectivity before the first step.
	StartOnline bool `yaml:"start_online,omitempty"`

	// InvokeTimeout overrides the synchronizer's invoke timeout.
	InvokeTimeout string `yaml:"invoke_timeout,omitempty"`

	// ResultWindow overrides how long the success flag stays set.
	ResultWindow string `yaml:"result_window,omitempty"`

	// Entries are enqueued, in order, before the first step.
	Entries []EntrySpec `yaml:"entries,omitempty"`

	// Outcomes script the invoker per command name.
	Outcomes map[string][]string `yaml:"outcomes,omitempty"`

	// Steps are played in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// EntrySpec is one command to enqueue.
type EntrySpec struct {
	Command string `yaml:"command"`
	Args    any    `yaml:"args"`
}

// Step is one scenario action.
type Step struct {
	// Do names the step (see the Step* constants).
	Do string `yaml:"do"`

	// Command and Args are used by enqueue.
	Command string `yaml:"command,omitempty"`
	Args    any    `yaml:"args,omitempty"`

	// ID is used by requeue.
	ID int64 `yaml:"id,omitempty"`

	// Duration is used by advance, as a Go duration string.
	Duration string `yaml:"duration,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is used by store_count, invoke_count and pending_count.
	Count int `yaml:"count,omitempty"`

	// Status is used by store_count (optional filter) and entry_status.
	Status string `yaml:"status,omitempty"`

	// ID is used by entry_status.
	ID int64 `yaml:"id,omitempty"`

	// Command is used by invoke_count (optional filter).
	Command string `yaml:"command,omitempty"`

	// Commands is used by invoke_order.
	Commands []string `yaml:"commands,omitempty"`

	// Value is used by last_result.
	Value string `yaml:"value,omitempty"`

	// Index and Args are used by payload_equals. Index is zero-based.
	Index int `yaml:"index,omitempty"`
	Args  any `yaml:"args,omitempty"`
}

// Step names.
const (
	StepEnqueue = "enqueue"
	StepOffline = "offline"
	StepOnline  = "online"
	StepDrain   = "drain"
	StepTrigger = "trigger"
	StepTick    = "tick"
	StepRestart = "restart"
	StepRequeue = "requeue"
	StepAdvance = "advance"
)

// Outcome names.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeReject  = "reject"
	OutcomeStall   = "stall"
	OutcomeCrash   = "crash"
)

// Assertion type constants.
const (
	AssertStoreCount    = "store_count"
	AssertEntryStatus   = "entry_status"
	AssertInvokeOrder   = "invoke_order"
	AssertInvokeCount   = "invoke_count"
	AssertPendingCount  = "pending_count"
	AssertLastResult    = "last_result"
	AssertPayloadEquals = "payload_equals"
)

// statusRemoved is the entry_status value for a deleted entry.
const statusRemoved = "removed"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if err := validateDuration("invoke_timeout", s.InvokeTimeout); err != nil {
		return err
	}
	if err := validateDuration("result_window", s.ResultWindow); err != nil {
		return err
	}

	for i, e := range s.Entries {
		if e.Command == "" {
			return fmt.Errorf("entries[%d]: command is required", i)
		}
	}

	for command, outcomes := range s.Outcomes {
		if len(outcomes) == 0 {
			return fmt.Errorf("outcomes[%s]: list must be non-empty", command)
		}
		for _, o := range outcomes {
			switch o {
			case OutcomeSuccess, OutcomeError, OutcomeReject, OutcomeStall, OutcomeCrash:
			default:
				return fmt.Errorf("outcomes[%s]: unknown outcome %q", command, o)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch step.Do {
	case StepOffline, StepOnline, StepDrain, StepTrigger, StepTick, StepRestart:
	case StepEnqueue:
		if step.Command == "" {
			return fmt.Errorf("steps[%d]: command is required for enqueue", index)
		}
	case StepRequeue:
		if step.ID <= 0 {
			return fmt.Errorf("steps[%d]: id is required for requeue", index)
		}
	case StepAdvance:
		if step.Duration == "" {
			return fmt.Errorf("steps[%d]: duration is required for advance", index)
		}
		if err := validateDuration(fmt.Sprintf("steps[%d].duration", index), step.Duration); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, step.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStoreCount:
		if a.Status != "" {
			if _, err := store.ParseStatus(a.Status); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertEntryStatus:
		if a.ID <= 0 {
			return fmt.Errorf("assertions[%d]: id is required for entry_status", index)
		}
		if a.Status != statusRemoved {
			if _, err := store.ParseStatus(a.Status); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertInvokeOrder:
		if a.Commands == nil {
			return fmt.Errorf("assertions[%d]: commands list is required for invoke_order", index)
		}
	case AssertInvokeCount, AssertPendingCount:
	case AssertLastResult:
		if a.Value != "" && a.Value != "success" {
			return fmt.Errorf("assertions[%d]: last_result value must be \"success\" or empty", index)
		}
	case AssertPayloadEquals:
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}

func validateDuration(field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive", field)
	}
	return nil
}
