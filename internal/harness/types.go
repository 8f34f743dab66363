package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/outbox/internal/payload"
)

// Invocation is one call received by the scripted invoker.
type Invocation struct {
	Command string
	Args    payload.Value
	Key     string
	Outcome string
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and the events they caused, one line each.
	Trace []string `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Invocations are the calls seen by the invoker, in order.
	Invocations []Invocation `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []string{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TraceText renders the trace for golden comparison, one line per event.
func (r *Result) TraceText(scenarioName string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", scenarioName)
	for _, line := range r.Trace {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
