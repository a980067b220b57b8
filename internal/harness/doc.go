// Package harness runs convergence scenarios against in-memory replicas.
//
// A scenario seeds named replicas, applies a list of steps (local writes,
// merges, diffs, sync rounds) and checks assertions on the final state. Every
// step appends human-readable lines to a trace; RunWithGolden compares that
// trace with a golden file so any change in merge or diff behavior shows up
// as a reviewable diff.
//
// # Scenario Format
//
//	name: diff_then_merge
//	description: "Diff names the gap, merge closes it"
//	session: test-session-1        # optional, printed by sync steps
//	replicas:
//	  a:
//	    - {key: nodes/k1, version: 0, value: x}
//	  b:
//	    - {key: nodes/k1, version: 1, value: y}
//	steps:
//	  - {op: diff, base: a, other: b}
//	  - {op: merge, from: b, into: a}
//	  - {op: update, replica: a, key: nodes/k1, value: z}
//	  - {op: insert, replica: a, key: nodes/k1, value: z, expect_error: ALREADY_EXISTS}
//	  - {op: sync, into: a, from: b}
//	  - {op: export, replica: a}
//	assertions:
//	  - {type: converged, replicas: [a, b]}
//	  - {type: version, replica: a, key: nodes/k1, version: 2}
//	  - {type: absent, replica: a, key: nodes/k9}
//	  - {type: count, replica: a, count: 1}
//
// # Trace Format
//
// The trace opens with the scenario name and the size of each replica, lists
// each step with its outcome indented below it, and closes with the final
// entries of every replica. Values are printed Go-quoted.
//
// # Golden Files
//
// Golden files live in testdata/golden/<scenario name>.golden. Regenerate
// them with:
//
//	go test ./internal/harness -update
package harness
