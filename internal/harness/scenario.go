package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/papapizza/internal/orderservice"
)

// Scenario is a scripted cart session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session fixes the session id. Defaults to testutil.SessionID(Name).
	Session string `yaml:"session,omitempty"`

	// Seed lines are written to the order service before the first step.
	Seed []SeedLine `yaml:"seed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedLine is a current-order line present on the server at start.
type SeedLine struct {
	Item string `yaml:"item"`
	Qty  int    `yaml:"qty"`
}

// Step performs exactly one action.
type Step struct {
	Mount   bool         `yaml:"mount,omitempty"`
	Refresh bool         `yaml:"refresh,omitempty"`
	Delta   *DeltaStep   `yaml:"delta,omitempty"`
	Submit  bool         `yaml:"submit,omitempty"`
	Fault   *FaultStep   `yaml:"fault,omitempty"`
	Resolve string       `yaml:"resolve,omitempty"`
	Settle  bool         `yaml:"settle,omitempty"`
	Expect  *StateExpect `yaml:"expect,omitempty"`

	// Error is the expected error text of a delta or submit step. Empty
	// means the call must succeed.
	Error string `yaml:"error,omitempty"`
}

// DeltaStep is ApplyDelta(Item, By).
type DeltaStep struct {
	Item string `yaml:"item"`
	By   int    `yaml:"by"`
}

// FaultStep queues a one-shot failure on the order service.
type FaultStep struct {
	Op      string `yaml:"op"`
	Message string `yaml:"message,omitempty"`
}

// StateExpect is a partial description of the cart. Only the fields that
// are set are checked.
type StateExpect struct {
	Quantities map[string]int `yaml:"quantities,omitempty"`
	Visible    *bool          `yaml:"visible,omitempty"`
	Stale      *bool          `yaml:"stale,omitempty"`
	Subtotal   string         `yaml:"subtotal,omitempty"`
	GST        string         `yaml:"gst,omitempty"`
	Total      string         `yaml:"total,omitempty"`

	// Pending is the number of requests held by the dispatcher.
	Pending *int `yaml:"pending,omitempty"`

	Submitting *bool `yaml:"submitting,omitempty"`

	// Notice matches the most recent notice.
	Notice *NoticeExpect `yaml:"notice,omitempty"`
}

// NoticeExpect matches a reconciler.Notice.
type NoticeExpect struct {
	Kind    string `yaml:"kind"`
	Message string `yaml:"message,omitempty"`
	OrderID string `yaml:"order_id,omitempty"`
}

// Assertion validates the journal or the final cart.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Request and Outcome select journal entries (trace_contains,
	// trace_count).
	Request string `yaml:"request,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Item    string `yaml:"item,omitempty"`

	// Count is the expected number of matching entries (trace_count).
	Count int `yaml:"count,omitempty"`

	// Sequence lists "kind/outcome" pairs (trace_order).
	Sequence []string `yaml:"sequence,omitempty"`

	// Expect describes the final cart (final_state).
	Expect *StateExpect `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps must not be empty")
	}
	for i, l := range s.Seed {
		if l.Item == "" {
			return fmt.Errorf("seed[%d]: item is required", i)
		}
		if l.Qty < 1 {
			return fmt.Errorf("seed[%d]: qty must be positive", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	actions := 0
	for _, set := range []bool{s.Mount, s.Refresh, s.Delta != nil, s.Submit, s.Fault != nil, s.Resolve != "", s.Settle, s.Expect != nil} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, actions)
	}
	if s.Error != "" && s.Delta == nil && !s.Submit {
		return fmt.Errorf("steps[%d]: error is only valid on delta and submit", index)
	}
	if s.Delta != nil && s.Delta.Item == "" && s.Error == "" {
		return fmt.Errorf("steps[%d]: delta.item is required", index)
	}
	if s.Fault != nil {
		if _, _, err := orderservice.ParseFault(s.Fault.Op); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	if s.Resolve != "" {
		if _, err := parseResolve(s.Resolve); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	return nil
}

// parseResolve returns 0 for all, -1 for next, -2 for last, or a sequence
// number.
func parseResolve(v string) (int64, error) {
	switch v {
	case "all":
		return 0, nil
	case "next":
		return -1, nil
	case "last":
		return -2, nil
	}
	seq, err := strconv.ParseInt(v, 10, 64)
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("resolve must be all, next, last or a sequence number, got %q", v)
	}
	return seq, nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Request == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: request and outcome are required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Sequence) == 0 {
			return fmt.Errorf("assertions[%d]: sequence is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
