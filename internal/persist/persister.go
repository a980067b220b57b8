package persist

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/signerstate/internal/state"
)

// Persister is the signing engine's storage backend.
//
// It is constructed around an injected handle; there is no process-wide
// instance. All methods are safe for concurrent use.
type Persister struct {
	h *state.Handle

	nodes      Table[NodeEntry]
	nodeStates Table[NodeStateEntry]
	channels   Table[ChannelEntry]
	trackers   Table[ChainTrackerEntry]
	allowlists Table[[]string]
}

// New creates a Persister writing to h.
func New(h *state.Handle) *Persister {
	return &Persister{
		h:          h,
		nodes:      Table[NodeEntry]{NS: state.NamespaceNode},
		nodeStates: Table[NodeStateEntry]{NS: state.NamespaceNodeState},
		channels:   Table[ChannelEntry]{NS: state.NamespaceChannel},
		trackers:   Table[ChainTrackerEntry]{NS: state.NamespaceTracker},
		allowlists: Table[[]string]{NS: state.NamespaceAllowlist},
	}
}

// Handle returns the underlying shared handle.
func (p *Persister) Handle() *state.Handle {
	return p.h
}

func nodeKey(nodeID []byte) string {
	return hex.EncodeToString(nodeID)
}

// channelKey is hex(nodeID || channelID), so a node's channels share the
// nodeKey prefix.
func channelKey(nodeID, channelID []byte) string {
	return hex.EncodeToString(append(append([]byte{}, nodeID...), channelID...))
}

// NewNode stores a node and its initial state, both at version 0 unless the
// node was deleted earlier (see state.Store.InsertOnly).
// Neither record is kept if either already exists or cannot be written.
func (p *Persister) NewNode(nodeID []byte, entry NodeEntry, st NodeStateEntry) error {
	id := nodeKey(nodeID)
	return p.h.With(func(s *state.Store) error {
		stateKey := p.nodeStates.NS.Key(id)
		if _, err := s.Get(stateKey); err == nil {
			return fmt.Errorf("new node: %w", &state.Error{
				Code:    state.ErrCodeAlreadyExists,
				Op:      "insert",
				Key:     stateKey,
				Message: "node state already present",
			})
		}
		if err := p.nodes.Insert(s, id, entry); err != nil {
			return fmt.Errorf("new node: %w", err)
		}
		if err := p.nodeStates.Insert(s, id, st); err != nil {
			if rbErr := p.nodes.Delete(s, id); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("roll back node: %w", rbErr))
			}
			return fmt.Errorf("new node: %w", err)
		}
		return nil
	})
}

// UpdateNode replaces a node's state. The node must exist.
func (p *Persister) UpdateNode(nodeID []byte, st NodeStateEntry) error {
	id := nodeKey(nodeID)
	return p.h.With(func(s *state.Store) error {
		if _, err := s.Get(p.nodes.NS.Key(id)); err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		if _, err := p.nodeStates.Upsert(s, id, st); err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		return nil
	})
}

// DeleteNode removes a node and its state. Deleting an unknown node is a no-op.
func (p *Persister) DeleteNode(nodeID []byte) error {
	id := nodeKey(nodeID)
	return p.h.With(func(s *state.Store) error {
		if err := p.nodes.Delete(s, id); err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		if err := p.nodeStates.Delete(s, id); err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		return nil
	})
}

// Nodes returns every node joined with its state, ordered by node id.
func (p *Persister) Nodes() ([]Node, error) {
	var nodes []Node
	err := p.h.With(func(s *state.Store) error {
		ids, entries, err := p.nodes.All(s, "")
		if err != nil {
			return err
		}
		for i, id := range ids {
			st, _, err := p.nodeStates.Get(s, id)
			if err != nil {
				return fmt.Errorf("node %s: %w", id, err)
			}
			raw, err := hex.DecodeString(id)
			if err != nil {
				return state.NewDecodeError("nodes", p.nodes.NS.Key(id), err)
			}
			nodes = append(nodes, Node{ID: raw, Entry: entries[i], State: st})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// NewChannel stores a channel stub at version 0.
func (p *Persister) NewChannel(nodeID, channelID []byte, entry ChannelEntry) error {
	id := channelKey(nodeID, channelID)
	return p.h.With(func(s *state.Store) error {
		if err := p.channels.Insert(s, id, entry); err != nil {
			return fmt.Errorf("new channel: %w", err)
		}
		return nil
	})
}

// UpdateChannel replaces an existing channel record.
func (p *Persister) UpdateChannel(nodeID, channelID []byte, entry ChannelEntry) error {
	id := channelKey(nodeID, channelID)
	return p.h.With(func(s *state.Store) error {
		if _, err := p.channels.Update(s, id, entry); err != nil {
			return fmt.Errorf("update channel: %w", err)
		}
		return nil
	})
}

// GetChannel returns a channel record.
func (p *Persister) GetChannel(nodeID, channelID []byte) (ChannelEntry, error) {
	var entry ChannelEntry
	err := p.h.With(func(s *state.Store) error {
		var err error
		entry, _, err = p.channels.Get(s, channelKey(nodeID, channelID))
		return err
	})
	if err != nil {
		return ChannelEntry{}, fmt.Errorf("get channel: %w", err)
	}
	return entry, nil
}

// NodeChannels returns every channel of a node, ordered by channel id.
func (p *Persister) NodeChannels(nodeID []byte) ([]NodeChannel, error) {
	prefix := nodeKey(nodeID)
	var out []NodeChannel
	err := p.h.With(func(s *state.Store) error {
		ids, entries, err := p.channels.All(s, prefix)
		if err != nil {
			return err
		}
		for i, id := range ids {
			raw, err := hex.DecodeString(id[len(prefix):])
			if err != nil {
				return state.NewDecodeError("channels", p.channels.NS.Key(id), err)
			}
			out = append(out, NodeChannel{ChannelID: raw, Entry: entries[i]})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("node channels: %w", err)
	}
	return out, nil
}

// NewChainTracker stores a node's chain tracker at version 0.
func (p *Persister) NewChainTracker(nodeID []byte, tracker ChainTrackerEntry) error {
	return p.h.With(func(s *state.Store) error {
		if err := p.trackers.Insert(s, nodeKey(nodeID), tracker); err != nil {
			return fmt.Errorf("new chain tracker: %w", err)
		}
		return nil
	})
}

// UpdateTracker replaces a node's existing chain tracker.
func (p *Persister) UpdateTracker(nodeID []byte, tracker ChainTrackerEntry) error {
	return p.h.With(func(s *state.Store) error {
		if _, err := p.trackers.Update(s, nodeKey(nodeID), tracker); err != nil {
			return fmt.Errorf("update tracker: %w", err)
		}
		return nil
	})
}

// GetTracker returns a node's chain tracker.
func (p *Persister) GetTracker(nodeID []byte) (ChainTrackerEntry, error) {
	var tracker ChainTrackerEntry
	err := p.h.With(func(s *state.Store) error {
		var err error
		tracker, _, err = p.trackers.Get(s, nodeKey(nodeID))
		return err
	})
	if err != nil {
		return ChainTrackerEntry{}, fmt.Errorf("get tracker: %w", err)
	}
	return tracker, nil
}

// UpdateAllowlist replaces a node's allowlist, creating it if needed.
// Entries are NFC-normalized so equivalent addresses compare equal.
func (p *Persister) UpdateAllowlist(nodeID []byte, allowlist []string) error {
	normalized := make([]string, len(allowlist))
	for i, a := range allowlist {
		normalized[i] = norm.NFC.String(a)
	}
	return p.h.With(func(s *state.Store) error {
		if _, err := p.allowlists.Upsert(s, nodeKey(nodeID), normalized); err != nil {
			return fmt.Errorf("update allowlist: %w", err)
		}
		return nil
	})
}

// Allowlist returns a node's allowlist.
func (p *Persister) Allowlist(nodeID []byte) ([]string, error) {
	var list []string
	err := p.h.With(func(s *state.Store) error {
		var err error
		list, _, err = p.allowlists.Get(s, nodeKey(nodeID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get allowlist: %w", err)
	}
	return list, nil
}

// Clear drops every record.
func (p *Persister) Clear() {
	p.h.Clear()
}
