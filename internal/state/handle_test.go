package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	return NewHandle(New(WithLogger(slog.New(slog.DiscardHandler))))
}

func TestHandle_ConcurrentUpdatesAndMerges(t *testing.T) {
	h := newTestHandle(t)
	key := NamespaceChannel.Key("02aa")
	require.NoError(t, h.InsertOnly(key, []byte("0")))
	_, err := h.Update(key, []byte("1"))
	require.NoError(t, err)

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := h.Update(key, []byte("v"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < perWriter; j++ {
			// Always stale or equal: never regresses the counter.
			h.Merge([]Record{{Key: key, Version: 1, Value: []byte("remote")}})
			_ = h.Export()
		}
	}()
	wg.Wait()

	got, err := h.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1+writers*perWriter), got.Version)
}

func TestHandle_WithReleasesLockOnError(t *testing.T) {
	h := newTestHandle(t)
	boom := errors.New("boom")

	err := h.With(func(s *Store) error {
		require.NoError(t, s.InsertOnly(NamespaceNode.Key("01"), nil))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Would deadlock if the lock leaked.
	assert.Equal(t, 1, h.Len())
}

func TestHandle_ErrorPathsReleaseLock(t *testing.T) {
	h := newTestHandle(t)

	_, err := h.Update(NamespaceNode.Key("missing"), nil)
	assert.True(t, IsNotFound(err))
	_, err = h.Get(NamespaceNode.Key("missing"))
	assert.True(t, IsNotFound(err))

	require.NoError(t, h.InsertOnly(NamespaceNode.Key("01"), nil))
}

func TestHandle_ListByPrefixAllowsReentry(t *testing.T) {
	h := newTestHandle(t)
	for i := 0; i < 3; i++ {
		_, err := h.Upsert(NamespaceAllowlist.Key(fmt.Sprintf("%02d", i)), []byte("a"))
		require.NoError(t, err)
	}

	for k := range h.ListByPrefix(NamespaceAllowlist.Prefix()) {
		_, err := h.Upsert(k, []byte("b"))
		require.NoError(t, err)
	}

	for _, e := range h.ListByPrefix(NamespaceAllowlist.Prefix()) {
		assert.Equal(t, uint64(1), e.Version)
	}
}

func TestHandle_Restore(t *testing.T) {
	h := newTestHandle(t)
	require.NoError(t, h.InsertOnly(NamespaceNode.Key("old"), nil))

	require.NoError(t, h.Restore([]Record{rec("nodes/new", 4, "n")}))
	_, err := h.Get(NamespaceNode.Key("old"))
	assert.True(t, IsNotFound(err))
	got, err := h.Get(NamespaceNode.Key("new"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Version)
}

func TestHandle_RestoreRetiresDroppedKeys(t *testing.T) {
	h := newTestHandle(t)
	key := NamespaceNodeState.Key("aa")
	_, err := h.Upsert(key, []byte("a"))
	require.NoError(t, err)
	_, err = h.Upsert(key, []byte("b"))
	require.NoError(t, err)

	require.NoError(t, h.Restore(nil))

	v, err := h.Upsert(key, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestHandle_RestoreInvalidLeavesStore(t *testing.T) {
	h := newTestHandle(t)
	require.NoError(t, h.InsertOnly(NamespaceNode.Key("keep"), nil))

	err := h.Restore([]Record{rec("k", 0, ""), rec("k", 0, "")})
	require.Error(t, err)
	assert.Equal(t, 1, h.Len())
}
