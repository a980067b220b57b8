package state

import (
	"bytes"
	"cmp"
	"slices"
)

// Record is one (key, version, value) triple of a snapshot.
// It is both the export format and the merge/diff payload.
type Record struct {
	Key     Key
	Version uint64
	Value   []byte
}

func (r Record) clone() Record {
	return Record{Key: r.Key, Version: r.Version, Value: bytes.Clone(r.Value)}
}

func sortRecords(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int { return cmp.Compare(a.Key, b.Key) })
}

// Export returns every entry as a Record, sorted by key.
// Values are copied; the snapshot stays valid after further mutations.
func (s *Store) Export() []Record {
	out := make([]Record, 0, len(s.entries))
	for _, k := range s.keys("") {
		e := s.entries[k]
		out = append(out, Record{Key: k, Version: e.Version, Value: bytes.Clone(e.Value)})
	}
	return out
}

// Import creates a store seeded from records, keeping their versions.
// Used for cold-start recovery from an authoritative copy.
//
// Returns ErrCodeInvalidSnapshot if a key repeats or is empty.
func Import(records []Record, opts ...Option) (*Store, error) {
	s := New(opts...)
	for _, r := range records {
		if r.Key == "" {
			return nil, newError(ErrCodeInvalidSnapshot, "import", "", "empty key")
		}
		if _, dup := s.entries[r.Key]; dup {
			return nil, newError(ErrCodeInvalidSnapshot, "import", r.Key, "duplicate key")
		}
		s.entries[r.Key] = Entry{Version: r.Version, Value: bytes.Clone(r.Value)}
	}
	return s, nil
}
