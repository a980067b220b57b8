package backup

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/signerstate/internal/state"
)

// Key layout:
//
//	e/<state key> -> 8-byte big-endian version || value
const entryPrefix = "e/"

var errShortEntry = errors.New("backup: stored entry shorter than version header")

// Pebble is a Backend stored in a Pebble directory.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble creates or opens a Pebble backup directory at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

// Close closes the database. Further calls are no-ops.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func entryKey(k state.Key) []byte {
	return append([]byte(entryPrefix), k...)
}

func encodeEntry(version uint64, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, version)
	copy(buf[8:], value)
	return buf
}

func decodeEntry(raw []byte) (uint64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, errShortEntry
	}
	value := make([]byte, len(raw)-8)
	copy(value, raw[8:])
	return binary.BigEndian.Uint64(raw), value, nil
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (p *Pebble) scan(ctx context.Context, fn func(k state.Key, version uint64, value []byte) error) error {
	prefix := []byte(entryPrefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := state.Key(iter.Key()[len(prefix):])
		version, value, err := decodeEntry(iter.Value())
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if err := fn(k, version, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Save replaces the stored snapshot with records in one synced batch.
func (p *Pebble) Save(ctx context.Context, records []state.Record) (SaveResult, error) {
	var res SaveResult
	for _, r := range records {
		if err := checkVersion(r); err != nil {
			return res, fmt.Errorf("save: %w", err)
		}
	}

	stored := make(map[state.Key]uint64)
	err := p.scan(ctx, func(k state.Key, version uint64, _ []byte) error {
		stored[k] = version
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("save: read versions: %w", err)
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	keep := make(map[state.Key]bool, len(records))
	for _, r := range records {
		keep[r.Key] = true
		old, ok := stored[r.Key]
		switch {
		case ok && old > r.Version:
			res.Stale = append(res.Stale, r.Key)
			continue
		case ok && old == r.Version:
			continue
		}
		if err := batch.Set(entryKey(r.Key), encodeEntry(r.Version, r.Value), nil); err != nil {
			return res, fmt.Errorf("save: write %s: %w", r.Key, err)
		}
		res.Written++
	}

	for k := range stored {
		if keep[k] {
			continue
		}
		if err := batch.Delete(entryKey(k), nil); err != nil {
			return res, fmt.Errorf("save: delete %s: %w", k, err)
		}
		res.Deleted++
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return res, fmt.Errorf("save: commit: %w", err)
	}
	return res, nil
}

// Load returns every stored entry ordered by key.
func (p *Pebble) Load(ctx context.Context) ([]state.Record, error) {
	var records []state.Record
	err := p.scan(ctx, func(k state.Key, version uint64, value []byte) error {
		records = append(records, state.Record{Key: k, Version: version, Value: value})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return records, nil
}
