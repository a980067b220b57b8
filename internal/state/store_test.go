package state

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a store whose logs are discarded.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestStore_InsertThenUpdates(t *testing.T) {
	s := newTestStore(t)
	key := NamespaceChannel.Key("02aa")

	require.NoError(t, s.InsertOnly(key, []byte("v0")))

	v, err := s.Update(key, []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = s.Update(key, []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	got, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version, "three mutations yield version 2")
	assert.Equal(t, []byte("v2"), got.Value)
}

func TestStore_DuplicateInsertRejected(t *testing.T) {
	s := newTestStore(t)
	key := NamespaceNode.Key("02aa")
	require.NoError(t, s.InsertOnly(key, []byte("first")))

	err := s.InsertOnly(key, []byte("second"))
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))

	got, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Version)
	assert.Equal(t, []byte("first"), got.Value, "store must be left unmodified")
}

func TestStore_UpdateAbsentKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update(NamespaceTracker.Key("02aa"), []byte("x"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, s.Len())
}

func TestStore_GetAbsentKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(NamespaceNode.Key("missing"))
	assert.True(t, IsNotFound(err))
}

func TestStore_Upsert(t *testing.T) {
	s := newTestStore(t)
	key := NamespaceAllowlist.Key("02aa")

	v, err := s.Upsert(key, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	v, err = s.Upsert(key, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	got, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got.Value)
}

func TestStore_UpsertRefusedInInsertOnceNamespace(t *testing.T) {
	s := newTestStore(t)

	for _, ns := range []Namespace{NamespaceNode, NamespaceChannel, NamespaceTracker} {
		_, err := s.Upsert(ns.Key("02aa"), []byte("x"))
		assert.True(t, IsPolicyError(err), "namespace %s", ns)
	}
	assert.Equal(t, 0, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	key := NamespaceNodeState.Key("02aa")
	_, err := s.Upsert(key, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(key))
	_, err = s.Get(key)
	assert.True(t, IsNotFound(err))

	// Idempotent
	assert.NoError(t, s.Delete(key))
}

func TestStore_RecreateAfterDeleteContinuesVersion(t *testing.T) {
	s := newTestStore(t)
	nodeState := NamespaceNodeState.Key("02aa")
	for _, v := range []string{"s0", "s1", "s2"} {
		_, err := s.Upsert(nodeState, []byte(v))
		require.NoError(t, err)
	}
	node := NamespaceNode.Key("02aa")
	require.NoError(t, s.InsertOnly(node, nil))
	_, err := s.Update(node, []byte("n1"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(nodeState))
	require.NoError(t, s.Delete(node))
	require.NoError(t, s.Delete(node), "a second delete must not lower the mark")

	v, err := s.Upsert(nodeState, []byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	require.NoError(t, s.InsertOnly(node, []byte("n2")))
	got, err := s.Get(node)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
}

func TestStore_RecreateAfterDeleteAtMaxVersion(t *testing.T) {
	s := mustImport(t, rec("nodestates/02aa", math.MaxUint64, "x"))
	require.NoError(t, s.Delete("nodestates/02aa"))

	_, err := s.Upsert("nodestates/02aa", []byte("y"))
	assert.Equal(t, ErrCodeVersionOverflow, CodeOf(err))
	assert.Equal(t, 0, s.Len())
}

func TestStore_DeleteRefusedOutsideNodeNamespaces(t *testing.T) {
	s := newTestStore(t)
	key := NamespaceChannel.Key("02aa")
	require.NoError(t, s.InsertOnly(key, []byte("x")))

	err := s.Delete(key)
	assert.True(t, IsPolicyError(err))

	_, err = s.Get(key)
	assert.NoError(t, err, "entry must survive a refused delete")
}

func TestStore_InvalidKeys(t *testing.T) {
	s := newTestStore(t)

	tests := []Key{"", "nodes", "nodes/", "bogus/02aa"}
	for _, k := range tests {
		err := s.InsertOnly(k, []byte("x"))
		assert.Equal(t, ErrCodeInvalidKey, CodeOf(err), "key %q", k)
	}
}

func TestStore_VersionOverflow(t *testing.T) {
	s, err := Import([]Record{{Key: NamespaceChannel.Key("02aa"), Version: math.MaxUint64, Value: []byte("x")}})
	require.NoError(t, err)

	_, err = s.Update(NamespaceChannel.Key("02aa"), []byte("y"))
	assert.Equal(t, ErrCodeVersionOverflow, CodeOf(err))

	got, err := s.Get(NamespaceChannel.Key("02aa"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got.Value)
}

func TestStore_ValuesAreCopied(t *testing.T) {
	s := newTestStore(t)
	key := NamespaceNode.Key("02aa")
	value := []byte("abc")
	require.NoError(t, s.InsertOnly(key, value))

	value[0] = 'X'
	got, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got.Value)

	got.Value[0] = 'Y'
	again, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Value)
}

func TestStore_ListByPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertOnly(NamespaceChannel.Key("02bb01"), []byte("c2")))
	require.NoError(t, s.InsertOnly(NamespaceChannel.Key("02aa01"), []byte("c1")))
	require.NoError(t, s.InsertOnly(NamespaceChannel.Key("03cc01"), []byte("c3")))
	require.NoError(t, s.InsertOnly(NamespaceNode.Key("02aa"), []byte("n")))

	var keys []Key
	for k := range s.ListByPrefix(NamespaceChannel.Prefix()) {
		keys = append(keys, k)
	}
	assert.Equal(t, []Key{"channels/02aa01", "channels/02bb01", "channels/03cc01"}, keys)

	keys = keys[:0]
	for k := range s.ListByPrefix(NamespaceChannel.Prefix() + "02") {
		keys = append(keys, k)
	}
	assert.Equal(t, []Key{"channels/02aa01", "channels/02bb01"}, keys)
}

func TestStore_ListByPrefixRestartable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertOnly(NamespaceNode.Key("01"), nil))

	seq := s.ListByPrefix(NamespaceNode.Prefix())
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())

	require.NoError(t, s.InsertOnly(NamespaceNode.Key("02"), nil))
	assert.Equal(t, 2, count(), "second range must observe the new key")
}

func TestStore_ListByPrefixEarlyBreak(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"01", "02", "03"} {
		require.NoError(t, s.InsertOnly(NamespaceNode.Key(id), nil))
	}

	n := 0
	for range s.ListByPrefix("") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertOnly(NamespaceNode.Key("01"), nil))
	_, err := s.Update(NamespaceNode.Key("01"), nil)
	require.NoError(t, err)

	s.Clear()
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.InsertOnly(NamespaceNode.Key("01"), nil))
	got, err := s.Get(NamespaceNode.Key("01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version, "clear keeps version history")
}

func TestKey_Namespace(t *testing.T) {
	assert.Equal(t, NamespaceTracker, NamespaceTracker.Key("02aa").Namespace())
	assert.Equal(t, Namespace(""), Key("nope").Namespace())
}

func TestError_Message(t *testing.T) {
	err := newError(ErrCodeNotFound, "get", "nodes/02", "key not present")
	assert.Equal(t, "get NOT_FOUND: key not present (key=nodes/02)", err.Error())
}
