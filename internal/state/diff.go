package state

import (
	"cmp"
	"slices"
)

// Diff returns the keys of other that are absent from base or carry a
// strictly greater version there, sorted by key.
//
// Keys present only in base are not reported: Diff answers "what does other
// have that base lacks or holds an older copy of".
func Diff(base, other []Record) []Change {
	have := make(map[Key]uint64, len(base))
	for _, r := range base {
		have[r.Key] = r.Version
	}

	var changes []Change
	for _, r := range other {
		old, ok := have[r.Key]
		switch {
		case !ok:
			changes = append(changes, Change{Key: r.Key, New: r.Version})
		case old < r.Version:
			changes = append(changes, Change{Key: r.Key, Old: old, HasOld: true, New: r.Version})
		}
	}
	slices.SortFunc(changes, func(a, b Change) int { return cmp.Compare(a.Key, b.Key) })
	return changes
}

// Pending returns the records of other that Diff(base, other) names, in key
// order. This is the minimal payload that brings base up to other.
func Pending(base, other []Record) []Record {
	want := make(map[Key]uint64)
	for _, c := range Diff(base, other) {
		want[c.Key] = c.New
	}

	var out []Record
	for _, r := range other {
		if v, ok := want[r.Key]; ok && v == r.Version {
			out = append(out, r.clone())
			delete(want, r.Key)
		}
	}
	sortRecords(out)
	return out
}
