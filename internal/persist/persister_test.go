package persist

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signerstate/internal/state"
)

var (
	nodeA = bytes.Repeat([]byte{0x02}, 33)
	nodeB = bytes.Repeat([]byte{0x03}, 33)
)

func newTestPersister(t *testing.T) *Persister {
	t.Helper()
	return New(state.NewHandle(state.New(state.WithLogger(slog.New(slog.DiscardHandler)))))
}

func testNode() NodeEntry {
	return NodeEntry{Seed: []byte{1, 2, 3}, KeyDerivationStyle: 1, Network: "regtest"}
}

func TestPersister_NewNodeWritesPairAtVersionZero(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))

	id := nodeKey(nodeA)
	for _, key := range []state.Key{state.NamespaceNode.Key(id), state.NamespaceNodeState.Key(id)} {
		e, err := p.Handle().Get(key)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), e.Version)
	}
}

func TestPersister_NewNodeTwice(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))

	err := p.NewNode(nodeA, testNode(), NodeStateEntry{})
	assert.True(t, state.IsAlreadyExists(err))
	assert.Equal(t, 2, p.Handle().Len())
}

func TestPersister_NewNodeWithOrphanStateRefused(t *testing.T) {
	p := newTestPersister(t)
	_, err := p.Handle().Upsert(state.NamespaceNodeState.Key(nodeKey(nodeA)), []byte(`{}`))
	require.NoError(t, err)

	err = p.NewNode(nodeA, testNode(), NodeStateEntry{})
	assert.True(t, state.IsAlreadyExists(err))
	assert.Equal(t, 1, p.Handle().Len(), "node record must not be written alone")
}

func TestPersister_NewNodeRollsBackWhenStateCannotBeWritten(t *testing.T) {
	p := newTestPersister(t)
	id := nodeKey(nodeA)
	p.Handle().Merge([]state.Record{{Key: state.NamespaceNodeState.Key(id), Version: math.MaxUint64}})
	require.NoError(t, p.DeleteNode(nodeA))

	err := p.NewNode(nodeA, testNode(), NodeStateEntry{})
	assert.Equal(t, state.ErrCodeVersionOverflow, state.CodeOf(err))

	_, err = p.Handle().Get(state.NamespaceNode.Key(id))
	assert.True(t, state.IsNotFound(err), "node record must not outlive a failed insert")
	assert.Equal(t, 0, p.Handle().Len())
}

func TestPersister_RecreatedNodeContinuesVersions(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))
	require.NoError(t, p.UpdateNode(nodeA, NodeStateEntry{}))
	require.NoError(t, p.DeleteNode(nodeA))

	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))
	id := nodeKey(nodeA)
	node, err := p.Handle().Get(state.NamespaceNode.Key(id))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), node.Version)
	st, err := p.Handle().Get(state.NamespaceNodeState.Key(id))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Version)
}

func TestPersister_UpdateNode(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))

	st := NodeStateEntry{VelocityControl: VelocityControl{Limit: 1000, Buckets: []uint64{1, 2}}}
	require.NoError(t, p.UpdateNode(nodeA, st))

	nodes, err := p.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, nodeA, nodes[0].ID)
	assert.Equal(t, testNode(), nodes[0].Entry)
	assert.Equal(t, uint64(1000), nodes[0].State.VelocityControl.Limit)

	e, err := p.Handle().Get(state.NamespaceNodeState.Key(nodeKey(nodeA)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Version)
}

func TestPersister_UpdateUnknownNode(t *testing.T) {
	p := newTestPersister(t)

	err := p.UpdateNode(nodeA, NodeStateEntry{})
	assert.True(t, state.IsNotFound(err))
	assert.Equal(t, 0, p.Handle().Len())
}

func TestPersister_DeleteNode(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))
	require.NoError(t, p.NewNode(nodeB, testNode(), NodeStateEntry{}))

	require.NoError(t, p.DeleteNode(nodeA))
	require.NoError(t, p.DeleteNode(nodeA), "deleting twice is a no-op")

	nodes, err := p.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, nodeB, nodes[0].ID)
}

func TestPersister_Channels(t *testing.T) {
	p := newTestPersister(t)
	chan1 := []byte{0, 0, 0, 1}
	chan2 := []byte{0, 0, 0, 2}

	require.NoError(t, p.NewChannel(nodeA, chan2, ChannelEntry{EnforcementState: json.RawMessage(`{}`)}))
	require.NoError(t, p.NewChannel(nodeA, chan1, ChannelEntry{EnforcementState: json.RawMessage(`{}`)}))
	require.NoError(t, p.NewChannel(nodeB, chan1, ChannelEntry{EnforcementState: json.RawMessage(`{}`)}))

	err := p.NewChannel(nodeA, chan1, ChannelEntry{})
	assert.True(t, state.IsAlreadyExists(err))

	require.NoError(t, p.UpdateChannel(nodeA, chan1, ChannelEntry{
		ChannelValueSatoshis: 50_000,
		EnforcementState:     json.RawMessage(`{"next_holder_commit_num":3}`),
	}))

	got, err := p.GetChannel(nodeA, chan1)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), got.ChannelValueSatoshis)
	assert.JSONEq(t, `{"next_holder_commit_num":3}`, string(got.EnforcementState))

	chans, err := p.NodeChannels(nodeA)
	require.NoError(t, err)
	require.Len(t, chans, 2)
	assert.Equal(t, chan1, chans[0].ChannelID)
	assert.Equal(t, chan2, chans[1].ChannelID)
}

func TestPersister_UpdateUnknownChannel(t *testing.T) {
	p := newTestPersister(t)

	err := p.UpdateChannel(nodeA, []byte{1}, ChannelEntry{})
	assert.True(t, state.IsNotFound(err))
}

func TestPersister_ChainTracker(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewChainTracker(nodeA, ChainTrackerEntry{Network: "regtest", Height: 100}))

	err := p.NewChainTracker(nodeA, ChainTrackerEntry{})
	assert.True(t, state.IsAlreadyExists(err))

	require.NoError(t, p.UpdateTracker(nodeA, ChainTrackerEntry{Network: "regtest", Height: 101}))
	got, err := p.GetTracker(nodeA)
	require.NoError(t, err)
	assert.Equal(t, uint32(101), got.Height)

	_, err = p.GetTracker(nodeB)
	assert.True(t, state.IsNotFound(err))
}

func TestPersister_Allowlist(t *testing.T) {
	p := newTestPersister(t)

	require.NoError(t, p.UpdateAllowlist(nodeA, []string{"bcrt1qaddr"}))
	require.NoError(t, p.UpdateAllowlist(nodeA, []string{"bcrt1qaddr", "café"}))

	got, err := p.Allowlist(nodeA)
	require.NoError(t, err)
	assert.Equal(t, []string{"bcrt1qaddr", "café"}, got)

	e, err := p.Handle().Get(state.NamespaceAllowlist.Key(nodeKey(nodeA)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Version)
}

func TestPersister_DecodeError(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.Handle().InsertOnly(state.NamespaceTracker.Key(nodeKey(nodeA)), []byte("not json")))

	_, err := p.GetTracker(nodeA)
	assert.True(t, state.IsDecodeError(err))
}

func TestPersister_Clear(t *testing.T) {
	p := newTestPersister(t)
	require.NoError(t, p.NewNode(nodeA, testNode(), NodeStateEntry{}))

	p.Clear()
	nodes, err := p.Nodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
