package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a convergence scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the session id reported by sync steps.
	// Defaults to testutil.DefaultSessionID.
	Session string `yaml:"session,omitempty"`

	// Replicas maps replica names to their initial snapshots.
	Replicas map[string][]RecordSpec `yaml:"replicas"`

	// Steps run in order against the replicas.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final replica state.
	Assertions []Assertion `yaml:"assertions"`
}

// RecordSpec is one seeded entry.
type RecordSpec struct {
	Key     string `yaml:"key"`
	Version uint64 `yaml:"version"`
	Value   string `yaml:"value"`
}

// Step is one scenario operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Replica is the target of insert, upsert, update, delete and export.
	Replica string `yaml:"replica,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Value   string `yaml:"value,omitempty"`

	// From and Into name the source and target of merge and sync.
	// For sync, Into is the local side and From the peer.
	From string `yaml:"from,omitempty"`
	Into string `yaml:"into,omitempty"`

	// Base and Other are the diff operands.
	Base  string `yaml:"base,omitempty"`
	Other string `yaml:"other,omitempty"`

	// ExpectError is the state error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpInsert = "insert"
	OpUpsert = "upsert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpMerge  = "merge"
	OpDiff   = "diff"
	OpSync   = "sync"
	OpExport = "export"
)

// Assertion validates the final state.
type Assertion struct {
	// Type is one of converged, version, absent, count.
	Type string `yaml:"type"`

	// Replicas lists the replicas that must hold identical state (converged).
	Replicas []string `yaml:"replicas,omitempty"`

	// Replica is the replica checked by version, absent and count.
	Replica string `yaml:"replica,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Version uint64 `yaml:"version,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertConverged = "converged"
	AssertVersion   = "version"
	AssertAbsent    = "absent"
	AssertCount     = "count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or references unknown replicas.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "replica:" vs "replicas:"
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

// validateScenario checks that required fields are present and every step
// and assertion names known replicas.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Replicas) == 0 {
		return fmt.Errorf("replicas map is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	known := func(name string) error {
		if _, ok := s.Replicas[name]; !ok {
			return fmt.Errorf("unknown replica %q", name)
		}
		return nil
	}

	for i, st := range s.Steps {
		var names []string
		switch st.Op {
		case OpInsert, OpUpsert, OpUpdate, OpDelete:
			if st.Key == "" {
				return fmt.Errorf("step %d: %s requires key", i+1, st.Op)
			}
			names = []string{st.Replica}
		case OpExport:
			names = []string{st.Replica}
		case OpMerge, OpSync:
			names = []string{st.From, st.Into}
		case OpDiff:
			names = []string{st.Base, st.Other}
		default:
			return fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
		for _, n := range names {
			if err := known(n); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}

	validTypes := []string{AssertConverged, AssertVersion, AssertAbsent, AssertCount}
	for i, a := range s.Assertions {
		if !slices.Contains(validTypes, a.Type) {
			return fmt.Errorf("assertion %d: unknown type %q (valid: %v)", i+1, a.Type, validTypes)
		}
		names := a.Replicas
		if a.Type != AssertConverged {
			names = []string{a.Replica}
		} else if len(names) < 2 {
			return fmt.Errorf("assertion %d: converged needs at least two replicas", i+1)
		}
		for _, n := range names {
			if err := known(n); err != nil {
				return fmt.Errorf("assertion %d: %w", i+1, err)
			}
		}
	}

	return nil
}
