package backup

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/signerstate/internal/state"
)

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
)

// ErrVersionRange is returned when a version does not fit SQLite's signed
// INTEGER. Every backend refuses it, including Pebble.
var ErrVersionRange = errors.New("backup: version exceeds storable range")

// SaveResult summarizes one Save.
type SaveResult struct {
	Written int         // entries inserted or moved to a newer version
	Deleted int         // entries removed because the snapshot no longer has them
	Stale   []state.Key // entries kept because the stored version was newer
}

// Backend stores one signer state snapshot durably.
type Backend interface {
	// Save replaces the stored snapshot with records.
	Save(ctx context.Context, records []state.Record) (SaveResult, error)

	// Load returns the stored snapshot in key order.
	Load(ctx context.Context) ([]state.Record, error)

	Close() error
}

// Open opens the backend for driver at path.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverPebble:
		return OpenPebble(path)
	default:
		return nil, fmt.Errorf("backup: unknown driver %q", driver)
	}
}

func checkVersion(r state.Record) error {
	if r.Version > math.MaxInt64 {
		return fmt.Errorf("%w: %s at %d", ErrVersionRange, r.Key, r.Version)
	}
	return nil
}
