package persist

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/signerstate/internal/state"
)

// Table is a typed view of one namespace.
//
// Table methods operate on an unlocked *state.Store; callers go through
// state.Handle.With so multi-table operations stay atomic.
type Table[T any] struct {
	NS state.Namespace
}

func (t Table[T]) encode(op string, id string, v T) (state.Key, []byte, error) {
	key := t.NS.Key(id)
	data, err := json.Marshal(v)
	if err != nil {
		return key, nil, fmt.Errorf("%s %s: encode: %w", op, key, err)
	}
	return key, data, nil
}

func (t Table[T]) decode(op string, key state.Key, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, state.NewDecodeError(op, key, err)
	}
	return v, nil
}

// Insert stores v under id at version 0.
func (t Table[T]) Insert(s *state.Store, id string, v T) error {
	key, data, err := t.encode("insert", id, v)
	if err != nil {
		return err
	}
	return s.InsertOnly(key, data)
}

// Update replaces the record under id and returns its new version.
func (t Table[T]) Update(s *state.Store, id string, v T) (uint64, error) {
	key, data, err := t.encode("update", id, v)
	if err != nil {
		return 0, err
	}
	return s.Update(key, data)
}

// Upsert inserts or replaces the record under id.
func (t Table[T]) Upsert(s *state.Store, id string, v T) (uint64, error) {
	key, data, err := t.encode("upsert", id, v)
	if err != nil {
		return 0, err
	}
	return s.Upsert(key, data)
}

// Get decodes the record under id.
func (t Table[T]) Get(s *state.Store, id string) (T, uint64, error) {
	key := t.NS.Key(id)
	e, err := s.Get(key)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	v, err := t.decode("get", key, e.Value)
	return v, e.Version, err
}

// Delete removes the record under id.
func (t Table[T]) Delete(s *state.Store, id string) error {
	return s.Delete(t.NS.Key(id))
}

// All decodes every record whose id starts with idPrefix, in key order.
// The first record that fails to decode aborts the listing.
func (t Table[T]) All(s *state.Store, idPrefix string) ([]string, []T, error) {
	var ids []string
	var vals []T
	for k, e := range s.ListByPrefix(t.NS.Prefix() + idPrefix) {
		_, id, _ := k.Split()
		v, err := t.decode("list", k, e.Value)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		vals = append(vals, v)
	}
	return ids, vals, nil
}
