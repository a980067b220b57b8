package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/signerstate/internal/state"
	"github.com/roach88/signerstate/internal/wire"
)

// Peer is the remote side of a synchronization round.
type Peer interface {
	// Fetch returns the peer's full snapshot.
	Fetch(ctx context.Context) ([]state.Record, error)

	// Push delivers records the peer lacks or holds older copies of.
	Push(ctx context.Context, records []state.Record) error
}

// HandlePeer is an in-process peer backed by another replica.
type HandlePeer struct {
	h *state.Handle
}

// NewHandlePeer wraps h as a Peer.
func NewHandlePeer(h *state.Handle) *HandlePeer {
	return &HandlePeer{h: h}
}

// Fetch exports the replica.
func (p *HandlePeer) Fetch(ctx context.Context) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.h.Export(), nil
}

// Push merges records into the replica.
func (p *HandlePeer) Push(ctx context.Context, records []state.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.h.Merge(records)
	return nil
}

// FilePeer exchanges snapshots through a framed snapshot file, for air-gapped
// transfer between a signer and its node. A missing file is an empty peer.
type FilePeer struct {
	Path string
}

// Fetch reads the snapshot file.
func (p FilePeer) Fetch(ctx context.Context) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	records, err := wire.ReadSnapshot(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return records, nil
}

// Push merges records into the snapshot file and rewrites it atomically.
func (p FilePeer) Push(ctx context.Context, records []state.Record) error {
	current, err := p.Fetch(ctx)
	if err != nil {
		return err
	}
	s, err := state.Import(current)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Path, err)
	}
	s.Merge(records)
	return WriteSnapshotFile(p.Path, s.Export())
}

// WriteSnapshotFile writes records to path through a temporary file and rename.
func WriteSnapshotFile(path string, records []state.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) // No-op after rename

	if err := wire.WriteSnapshot(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
