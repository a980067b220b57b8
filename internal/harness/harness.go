package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/signerstate/internal/state"
	"github.com/roach88/signerstate/internal/syncer"
	"github.com/roach88/signerstate/internal/testutil"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step met its expectation and every assertion held.
	Pass bool

	// Trace holds the rendered trace lines.
	Trace []string

	// Errors holds failed expectations and assertions.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failure.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

func (r *Result) tracef(format string, args ...any) {
	r.Trace = append(r.Trace, fmt.Sprintf(format, args...))
}

// Harness holds the replicas of one scenario run.
type Harness struct {
	replicas map[string]*state.Handle
	names    []string
	steps    testutil.StepCounter
	sessions *testutil.FixedSessionGenerator
	logger   *slog.Logger
}

// Run executes a scenario against fresh replicas.
// Step failures and assertion failures are reported in the Result;
// an error is returned only for scenarios that cannot run at all.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := &Harness{
		replicas: make(map[string]*state.Handle, len(scenario.Replicas)),
		sessions: testutil.NewFixedSessionGenerator(scenario.Session),
		logger:   slog.New(slog.DiscardHandler), // Suppress stale-merge warnings in tests
	}

	result := NewResult()
	result.tracef("scenario: %s", scenario.Name)

	for name, specs := range scenario.Replicas {
		records := make([]state.Record, 0, len(specs))
		for _, r := range specs {
			records = append(records, state.Record{Key: state.Key(r.Key), Version: r.Version, Value: []byte(r.Value)})
		}
		s, err := state.Import(records, state.WithLogger(h.logger))
		if err != nil {
			return nil, fmt.Errorf("replica %s: %w", name, err)
		}
		h.replicas[name] = state.NewHandle(s)
		h.names = append(h.names, name)
	}
	slices.Sort(h.names)
	for _, name := range h.names {
		result.tracef("replica %s: %d entries", name, h.replicas[name].Len())
	}

	ctx := context.Background()
	for _, st := range scenario.Steps {
		h.runStep(ctx, st, result)
	}

	for _, name := range h.names {
		result.tracef("final %s:", name)
		h.traceEntries(name, result)
	}

	for _, msg := range EvaluateAssertions(h.replicas, scenario.Assertions) {
		result.AddError("%s", msg)
	}

	return result, nil
}

func (h *Harness) runStep(ctx context.Context, st Step, result *Result) {
	n := h.steps.Next()
	key := state.Key(st.Key)

	var err error
	switch st.Op {
	case OpInsert, OpUpsert, OpUpdate:
		result.tracef("step %d: %s %s %s = %q", n, st.Op, st.Replica, st.Key, st.Value)
		r := h.replicas[st.Replica]
		var version uint64
		switch st.Op {
		case OpInsert:
			err = r.InsertOnly(key, []byte(st.Value))
		case OpUpsert:
			version, err = r.Upsert(key, []byte(st.Value))
		case OpUpdate:
			version, err = r.Update(key, []byte(st.Value))
		}
		if err == nil {
			result.tracef("  -> v%d", version)
		}

	case OpDelete:
		result.tracef("step %d: delete %s %s", n, st.Replica, st.Key)
		if err = h.replicas[st.Replica].Delete(key); err == nil {
			result.tracef("  -> ok")
		}

	case OpMerge:
		result.tracef("step %d: merge %s -> %s", n, st.From, st.Into)
		changes := h.replicas[st.Into].Merge(h.replicas[st.From].Export())
		traceChanges(result, changes)

	case OpDiff:
		result.tracef("step %d: diff %s %s", n, st.Base, st.Other)
		changes := state.Diff(h.replicas[st.Base].Export(), h.replicas[st.Other].Export())
		traceChanges(result, changes)

	case OpSync:
		s := syncer.New(h.replicas[st.Into], syncer.NewHandlePeer(h.replicas[st.From]),
			syncer.WithLogger(h.logger),
			syncer.WithSessions(h.sessions),
		)
		var report syncer.Report
		report, err = s.SyncOnce(ctx)
		result.tracef("step %d: sync %s <-> %s session=%s", n, st.Into, st.From, report.Session)
		if err == nil {
			if len(report.Pulled) == 0 && len(report.Pushed) == 0 {
				result.tracef("  (no changes)")
			}
			for _, c := range report.Pulled {
				result.tracef("  pulled %s", c)
			}
			for _, r := range report.Pushed {
				result.tracef("  pushed %s v%d", r.Key, r.Version)
			}
		}

	case OpExport:
		result.tracef("step %d: export %s", n, st.Replica)
		h.traceEntries(st.Replica, result)
	}

	h.checkError(n, st, err, result)
}

// checkError traces err and compares it with the step's expectation.
func (h *Harness) checkError(n int, st Step, err error, result *Result) {
	got := ""
	if err != nil {
		got = string(state.CodeOf(err))
		if got == "" {
			got = err.Error()
		}
		result.tracef("  -> error %s", got)
	}

	switch {
	case st.ExpectError == "" && err != nil:
		result.AddError("step %d: unexpected error: %v", n, err)
	case st.ExpectError != "" && got != st.ExpectError:
		if got == "" {
			got = "success"
		}
		result.AddError("step %d: expected error %s, got %s", n, st.ExpectError, got)
	}
}

func traceChanges(result *Result, changes []state.Change) {
	if len(changes) == 0 {
		result.tracef("  (no changes)")
		return
	}
	for _, c := range changes {
		result.tracef("  %s", c)
	}
}

func (h *Harness) traceEntries(name string, result *Result) {
	records := h.replicas[name].Export()
	if len(records) == 0 {
		result.tracef("  (empty)")
		return
	}
	for _, r := range records {
		result.tracef("  %s v%d %q", r.Key, r.Version, r.Value)
	}
}
