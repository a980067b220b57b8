// Package testutil holds deterministic stand-ins used by tests and the
// scenario harness.
package testutil

// FixedSessionGenerator returns the same sync session id every time, so
// scenario traces that print session ids are byte-identical across runs.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// DefaultSessionID is used when a scenario does not name a session.
const DefaultSessionID = "test-session-default"

// NewFixedSessionGenerator creates a generator returning id, or
// DefaultSessionID when id is empty.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session id. Implements syncer.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
