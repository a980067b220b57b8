package state

import (
	"bytes"
	"fmt"
)

// Change describes one key brought up to date by Merge, or found newer by Diff.
type Change struct {
	Key Key

	// Old is the prior version. Only meaningful when HasOld is true.
	Old    uint64
	HasOld bool

	// New is the resulting version.
	New uint64
}

// String renders the change the way sync logs print it.
func (c Change) String() string {
	old := "null"
	if c.HasOld {
		old = fmt.Sprintf("%d", c.Old)
	}
	return fmt.Sprintf("StateChange[%s]: old_version=%s, new_version=%d", c.Key, old, c.New)
}

// Merge pulls every entry of incoming that is newer than the local copy.
//
// For each incoming record, in order:
//   - empty key: logged at WARN and skipped
//   - absent locally: inserted with the incoming version (reported, HasOld=false),
//     unless the key was deleted here at that version or later, which counts
//     as stale
//   - same version: skipped
//   - local version newer: stale, logged at WARN and skipped
//   - local version older: overwritten (reported)
//
// Merge is one-directional. Namespace policies do not apply: peer payloads are
// opaque and were admitted by the peer's own store. Merging the same snapshot
// twice reports no changes the second time.
func (s *Store) Merge(incoming []Record) []Change {
	var changes []Change
	for _, rec := range incoming {
		if rec.Key == "" {
			s.logger.Warn("merge: ignoring entry with empty key", "incoming_version", rec.Version)
			continue
		}

		local, ok := s.entries[rec.Key]
		switch {
		case !ok:
			if last, deleted := s.retired[rec.Key]; deleted && rec.Version <= last {
				s.logger.Warn("merge: ignoring outdated state version of deleted key",
					"key", rec.Key,
					"deleted_version", last,
					"incoming_version", rec.Version,
				)
				continue
			}
			s.logger.Debug("merge: new key", "key", rec.Key, "version", rec.Version)
			s.put(rec.Key, Entry{Version: rec.Version, Value: bytes.Clone(rec.Value)})
			changes = append(changes, Change{Key: rec.Key, New: rec.Version})

		case local.Version == rec.Version:
			continue

		case local.Version > rec.Version:
			s.logger.Warn("merge: ignoring outdated state version",
				"key", rec.Key,
				"local_version", local.Version,
				"incoming_version", rec.Version,
			)

		default:
			s.logger.Debug("merge: updating key",
				"key", rec.Key,
				"old_version", local.Version,
				"new_version", rec.Version,
			)
			s.put(rec.Key, Entry{Version: rec.Version, Value: bytes.Clone(rec.Value)})
			changes = append(changes, Change{Key: rec.Key, Old: local.Version, HasOld: true, New: rec.Version})
		}
	}
	return changes
}
