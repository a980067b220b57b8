package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UnexpectedErrorFails(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "dup",
		Description: "duplicate insert without expectation",
		Replicas:    map[string][]RecordSpec{"a": {{Key: "nodes/aa", Value: "x"}}},
		Steps:       []Step{{Op: OpInsert, Replica: "a", Key: "nodes/aa", Value: "y"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1: unexpected error")
	assert.Contains(t, result.Trace, "  -> error ALREADY_EXISTS")
}

func TestRun_MissingExpectedErrorFails(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "noerr",
		Description: "expects an error that never happens",
		Replicas:    map[string][]RecordSpec{"a": {}},
		Steps:       []Step{{Op: OpInsert, Replica: "a", Key: "nodes/aa", Value: "x", ExpectError: "ALREADY_EXISTS"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"step 1: expected error ALREADY_EXISTS, got success"}, result.Errors)
}

func TestRun_InvalidKeyIsTraced(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "badkey",
		Description: "unknown namespace",
		Replicas:    map[string][]RecordSpec{"a": {}},
		Steps:       []Step{{Op: OpUpsert, Replica: "a", Key: "wallets/aa", Value: "x", ExpectError: "INVALID_KEY"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace, "  -> error INVALID_KEY")
}

func TestRun_AssertionFailures(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "asserts",
		Description: "every assertion type failing",
		Replicas: map[string][]RecordSpec{
			"a": {{Key: "nodes/aa", Version: 1, Value: "x"}},
			"b": {},
		},
		Steps: []Step{{Op: OpExport, Replica: "b"}},
		Assertions: []Assertion{
			{Type: AssertConverged, Replicas: []string{"a", "b"}},
			{Type: AssertVersion, Replica: "a", Key: "nodes/aa", Version: 7},
			{Type: AssertVersion, Replica: "b", Key: "nodes/aa", Version: 0},
			{Type: AssertAbsent, Replica: "a", Key: "nodes/aa"},
			{Type: AssertCount, Replica: "b", Count: 3},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "a and b differ: 1 vs 0 entries")
	assert.Contains(t, result.Errors[1], "expected version 7, got 1")
	assert.Contains(t, result.Errors[2], "NOT_FOUND")
	assert.Contains(t, result.Errors[3], "expected absent")
	assert.Contains(t, result.Errors[4], "expected 3 entries, got 0")
	assert.Contains(t, result.Trace, "  (empty)")
}

func TestRun_ConvergedDetectsValueDrift(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "drift",
		Description: "same version, different bytes",
		Replicas: map[string][]RecordSpec{
			"a": {{Key: "nodes/aa", Version: 1, Value: "x"}},
			"b": {{Key: "nodes/aa", Version: 1, Value: "y"}},
		},
		Steps:      []Step{{Op: OpMerge, From: "a", Into: "b"}},
		Assertions: []Assertion{{Type: AssertConverged, Replicas: []string{"a", "b"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "values differ at version 1")
}

func TestRun_RejectsInvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestRun_DuplicateSeedKey(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "dupseed",
		Description: "seed repeats a key",
		Replicas: map[string][]RecordSpec{
			"a": {{Key: "nodes/aa"}, {Key: "nodes/aa"}},
		},
		Steps: []Step{{Op: OpExport, Replica: "a"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replica a")
}
