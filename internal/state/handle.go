package state

import (
	"iter"
	"sync"
)

// Handle shares one Store between goroutines.
//
// Every method holds the mutex for its own duration and releases it on every
// exit path. Operations are linearized: an Update from the signing engine and
// a Merge from the sync routine are totally ordered. Nothing performs I/O
// under the lock.
type Handle struct {
	mu    sync.Mutex
	store *Store
}

// NewHandle wraps s. The caller must not use s directly afterwards.
func NewHandle(s *Store) *Handle {
	if s == nil {
		s = New()
	}
	return &Handle{store: s}
}

// With runs fn with exclusive access to the store.
// Use it for multi-step operations that must appear atomic to other callers.
// fn must not retain the *Store or call back into the Handle.
func (h *Handle) With(fn func(*Store) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.store)
}

func (h *Handle) InsertOnly(key Key, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.InsertOnly(key, value)
}

func (h *Handle) Upsert(key Key, value []byte) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Upsert(key, value)
}

func (h *Handle) Update(key Key, value []byte) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Update(key, value)
}

func (h *Handle) Get(key Key) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Get(key)
}

func (h *Handle) Delete(key Key) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Delete(key)
}

func (h *Handle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Len()
}

func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store.Clear()
}

// ListByPrefix yields matching entries in key order.
//
// Each range copies the matching entries under the lock and yields them after
// releasing it, so the loop body may call back into the Handle.
func (h *Handle) ListByPrefix(prefix string) iter.Seq2[Key, Entry] {
	return func(yield func(Key, Entry) bool) {
		var recs []Record
		h.mu.Lock()
		for k, e := range h.store.ListByPrefix(prefix) {
			recs = append(recs, Record{Key: k, Version: e.Version, Value: e.Value})
		}
		h.mu.Unlock()

		for _, r := range recs {
			if !yield(r.Key, Entry{Version: r.Version, Value: r.Value}) {
				return
			}
		}
	}
}

// Merge applies incoming under a single lock acquisition, so no reader
// observes a partially merged batch.
func (h *Handle) Merge(incoming []Record) []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Merge(incoming)
}

// Export returns a key-sorted snapshot of the store.
func (h *Handle) Export() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Export()
}

// Restore replaces the store's contents with records.
// The snapshot is validated before the swap; on error nothing changes.
// Keys absent from records are retired as if deleted.
func (h *Handle) Restore(records []Record) error {
	fresh, err := Import(records)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.store.replace(fresh.entries)
	return nil
}
