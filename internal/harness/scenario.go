package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/persist"
)

// Scenario drives one persistence hierarchy through a sequence of steps
// and checks the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup steps run first. A setup step that does not succeed aborts the
	// run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps run after setup; their outcomes are checked against
	// Expect.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the final object state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation against the hierarchy.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Role selects the context: root, main or leaf.
	Role string `yaml:"role,omitempty"`

	// Ref names an object so later steps and assertions can refer to it.
	Ref string `yaml:"ref,omitempty"`

	// Kind is the entity type for insert.
	Kind string `yaml:"kind,omitempty"`

	// Attrs are the attributes for insert and update. A null value in an
	// update removes the key.
	Attrs map[string]any `yaml:"attrs,omitempty"`

	// Owner is the context whose object handles delete_objects passes in.
	// Defaults to Role.
	Owner string `yaml:"owner,omitempty"`

	// Refs are the objects passed to delete_objects.
	Refs []string `yaml:"refs,omitempty"`

	// Save makes delete_objects commit after deleting.
	Save bool `yaml:"save,omitempty"`

	// Fail lists roles whose commit is rejected during this step.
	Fail []string `yaml:"fail,omitempty"`

	// Expect is the expected result ("ok" when empty).
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Role is the context whose view is checked (count, final_state,
	// has_changes). Defaults to root.
	Role string `yaml:"role,omitempty"`

	// Kind filters count; empty counts every kind.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of objects (count) or events
	// (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ref selects the object for final_state.
	Ref string `yaml:"ref,omitempty"`

	// Expect holds the expected attributes for final_state (subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts that the object of final_state is not visible.
	Absent bool `yaml:"absent,omitempty"`

	// Op and Result select events for trace_count.
	Op     string `yaml:"op,omitempty"`
	Result string `yaml:"result,omitempty"`

	// Roles is the exact commit sequence for commit_order.
	Roles []string `yaml:"roles,omitempty"`

	// Changes is the expected has_changes outcome.
	Changes bool `yaml:"changes,omitempty"`
}

// Step operations.
const (
	OpInsert        = "insert"
	OpUpdate        = "update"
	OpDelete        = "delete"
	OpCommitSync    = "commit_sync"
	OpCommitAsync   = "commit_async"
	OpReset         = "reset"
	OpDeleteObjects = "delete_objects"
	OpDestroy       = "destroy"
	OpReinit        = "reinit"
	OpRemoveFile    = "remove_file"
)

// Assertion types.
const (
	AssertCount       = "count"
	AssertFinalState  = "final_state"
	AssertHasChanges  = "has_changes"
	AssertTraceCount  = "trace_count"
	AssertCommitOrder = "commit_order"
)

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

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateRole(field, role string, required bool) error {
	if role == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if _, err := persist.ParseRole(role); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func validateStep(s Step) error {
	switch s.Op {
	case OpInsert:
		if s.Kind == "" || s.Ref == "" {
			return fmt.Errorf("insert needs kind and ref")
		}
	case OpUpdate, OpDelete:
		if s.Ref == "" {
			return fmt.Errorf("%s needs ref", s.Op)
		}
	case OpDeleteObjects:
		if len(s.Refs) == 0 {
			return fmt.Errorf("delete_objects needs refs")
		}
		if err := validateRole("owner", s.Owner, false); err != nil {
			return err
		}
	case OpCommitSync, OpCommitAsync, OpReset:
	case OpDestroy, OpReinit, OpRemoveFile:
		return nil
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}

	if err := validateRole("role", s.Role, true); err != nil {
		return err
	}
	for _, r := range s.Fail {
		if err := validateRole("fail", r, true); err != nil {
			return err
		}
	}
	return nil
}

var assertionTypes = []string{AssertCount, AssertFinalState, AssertHasChanges, AssertTraceCount, AssertCommitOrder}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	if !slices.Contains(assertionTypes, a.Type) {
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if err := validateRole("role", a.Role, false); err != nil {
		return err
	}
	switch a.Type {
	case AssertFinalState:
		if a.Ref == "" {
			return fmt.Errorf("ref is required for final_state")
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("expect or absent is required for final_state")
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("op is required for trace_count")
		}
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}
