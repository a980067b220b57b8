package harness

import (
	"bytes"
	"fmt"

	"github.com/roach88/signerstate/internal/state"
)

// EvaluateAssertions checks every assertion and returns one message per failure.
func EvaluateAssertions(replicas map[string]*state.Handle, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(replicas, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i+1, a.Type, err))
		}
	}
	return failures
}

func evaluate(replicas map[string]*state.Handle, a Assertion) error {
	switch a.Type {
	case AssertConverged:
		return assertConverged(replicas, a.Replicas)

	case AssertVersion:
		e, err := replicas[a.Replica].Get(state.Key(a.Key))
		if err != nil {
			return fmt.Errorf("%s: %w", a.Replica, err)
		}
		if e.Version != a.Version {
			return fmt.Errorf("%s %s: expected version %d, got %d", a.Replica, a.Key, a.Version, e.Version)
		}

	case AssertAbsent:
		if _, err := replicas[a.Replica].Get(state.Key(a.Key)); !state.IsNotFound(err) {
			return fmt.Errorf("%s %s: expected absent", a.Replica, a.Key)
		}

	case AssertCount:
		if n := replicas[a.Replica].Len(); n != a.Count {
			return fmt.Errorf("%s: expected %d entries, got %d", a.Replica, a.Count, n)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// assertConverged requires every named replica to export the same snapshot
// as the first one.
func assertConverged(replicas map[string]*state.Handle, names []string) error {
	want := replicas[names[0]].Export()
	for _, name := range names[1:] {
		got := replicas[name].Export()
		if err := sameSnapshot(want, got); err != nil {
			return fmt.Errorf("%s and %s differ: %w", names[0], name, err)
		}
	}
	return nil
}

func sameSnapshot(a, b []state.Record) error {
	if len(a) != len(b) {
		return fmt.Errorf("%d vs %d entries", len(a), len(b))
	}
	for i := range a {
		switch {
		case a[i].Key != b[i].Key:
			return fmt.Errorf("entry %d: key %s vs %s", i, a[i].Key, b[i].Key)
		case a[i].Version != b[i].Version:
			return fmt.Errorf("%s: version %d vs %d", a[i].Key, a[i].Version, b[i].Version)
		case !bytes.Equal(a[i].Value, b[i].Value):
			return fmt.Errorf("%s: values differ at version %d", a[i].Key, a[i].Version)
		}
	}
	return nil
}
