package cli

import (
	"fmt"
	"os"

	"github.com/roach88/signerstate/internal/state"
	"github.com/roach88/signerstate/internal/wire"
)

// readSnapshotFile reads and verifies a framed snapshot file.
func readSnapshotFile(path string) ([]state.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := wire.ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// loadSnapshotStore reads path into a fresh store.
func loadSnapshotStore(path string, opts ...state.Option) (*state.Store, error) {
	records, err := readSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	s, err := state.Import(records, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
