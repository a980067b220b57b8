package state

import (
	"bytes"
	"iter"
	"log/slog"
	"math"
	"slices"
	"strings"
)

// Entry is the versioned value stored under one key.
type Entry struct {
	Version uint64
	Value   []byte
}

func (e Entry) clone() Entry {
	return Entry{Version: e.Version, Value: bytes.Clone(e.Value)}
}

// Store is an in-memory map from Key to Entry enforcing per-namespace
// mutation policies.
//
// Store is not safe for concurrent use; wrap it in a Handle to share it.
// Values are copied on insert and on read so callers never alias stored bytes.
//
// Versions are never reused: a deleted key remembers its last version, and
// re-creating it continues from there.
type Store struct {
	entries map[Key]Entry
	retired map[Key]uint64 // last version of each deleted key
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for merge diagnostics.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[Key]Entry),
		retired: make(map[Key]uint64),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertOnly creates key at version 0, or one past its last version if the
// key was deleted earlier.
// Returns ErrCodeAlreadyExists if key is present; the store is left unmodified.
func (s *Store) InsertOnly(key Key, value []byte) error {
	if _, err := policyFor("insert", key); err != nil {
		return err
	}
	if _, ok := s.entries[key]; ok {
		return newError(ErrCodeAlreadyExists, "insert", key, "key already present")
	}
	_, err := s.create("insert", key, value)
	return err
}

// Upsert creates key if absent (see InsertOnly for the starting version),
// otherwise bumps its version and replaces the value. Returns the resulting
// version.
//
// Refused with ErrCodeNamespacePolicy in insert-once namespaces.
func (s *Store) Upsert(key Key, value []byte) (uint64, error) {
	p, err := policyFor("upsert", key)
	if err != nil {
		return 0, err
	}
	if !p.Upsert {
		return 0, newError(ErrCodeNamespacePolicy, "upsert", key, "namespace is insert-once; use InsertOnly then Update")
	}
	if _, ok := s.entries[key]; !ok {
		return s.create("upsert", key, value)
	}
	return s.bump("upsert", key, value)
}

// create requires key to be absent.
func (s *Store) create(op string, key Key, value []byte) (uint64, error) {
	var v uint64
	if last, ok := s.retired[key]; ok {
		if last == math.MaxUint64 {
			return 0, newError(ErrCodeVersionOverflow, op, key, "version counter exhausted")
		}
		v = last + 1
	}
	s.put(key, Entry{Version: v, Value: bytes.Clone(value)})
	return v, nil
}

// put stores e and forgets any retired version of key; e.Version must be
// above it.
func (s *Store) put(key Key, e Entry) {
	s.entries[key] = e
	delete(s.retired, key)
}

// retire drops key, remembering version as its high-water mark.
func (s *Store) retire(key Key, version uint64) {
	delete(s.entries, key)
	if last, ok := s.retired[key]; !ok || version > last {
		s.retired[key] = version
	}
}

// Update bumps the version of an existing key and replaces its value.
// Returns ErrCodeNotFound if key is absent.
func (s *Store) Update(key Key, value []byte) (uint64, error) {
	if _, err := policyFor("update", key); err != nil {
		return 0, err
	}
	if _, ok := s.entries[key]; !ok {
		return 0, newError(ErrCodeNotFound, "update", key, "key not present")
	}
	return s.bump("update", key, value)
}

// bump requires key to be present.
func (s *Store) bump(op string, key Key, value []byte) (uint64, error) {
	cur := s.entries[key]
	if cur.Version == math.MaxUint64 {
		return 0, newError(ErrCodeVersionOverflow, op, key, "version counter exhausted")
	}
	next := cur.Version + 1
	s.entries[key] = Entry{Version: next, Value: bytes.Clone(value)}
	return next, nil
}

// Get returns a copy of the entry for key.
func (s *Store) Get(key Key) (Entry, error) {
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, newError(ErrCodeNotFound, "get", key, "key not present")
	}
	return e.clone(), nil
}

// Delete removes key. Removing an absent key is a no-op.
// Returns ErrCodeNamespacePolicy for namespaces without a deletion path.
func (s *Store) Delete(key Key) error {
	p, err := policyFor("delete", key)
	if err != nil {
		return err
	}
	if !p.Deletable {
		return newError(ErrCodeNamespacePolicy, "delete", key, "namespace does not allow deletion")
	}
	if e, ok := s.entries[key]; ok {
		s.retire(key, e.Version)
	}
	return nil
}

// ListByPrefix yields every entry whose key starts with prefix, in key order.
//
// The sequence is lazy and restartable: each range over it re-reads the
// store. Mutating the store while ranging is allowed; the keys to visit are
// fixed when the range starts and keys deleted meanwhile are skipped.
func (s *Store) ListByPrefix(prefix string) iter.Seq2[Key, Entry] {
	return func(yield func(Key, Entry) bool) {
		for _, k := range s.keys(prefix) {
			e, ok := s.entries[k]
			if !ok {
				continue
			}
			if !yield(k, e.clone()) {
				return
			}
		}
	}
}

// keys returns the sorted keys starting with prefix.
func (s *Store) keys(prefix string) []Key {
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		if strings.HasPrefix(string(k), prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Clear removes every entry. Like Delete, it keeps each key's last version.
func (s *Store) Clear() {
	for k, e := range s.entries {
		s.retire(k, e.Version)
	}
}

// replace swaps in entries. Keys missing from entries are retired.
func (s *Store) replace(entries map[Key]Entry) {
	for k, e := range s.entries {
		if _, ok := entries[k]; !ok {
			s.retire(k, e.Version)
		}
	}
	for k := range entries {
		delete(s.retired, k)
	}
	s.entries = entries
}

// Equal reports whether both stores hold the same keys, versions and values.
func (s *Store) Equal(other *Store) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for k, e := range s.entries {
		o, ok := other.entries[k]
		if !ok || o.Version != e.Version || !bytes.Equal(o.Value, e.Value) {
			return false
		}
	}
	return true
}
