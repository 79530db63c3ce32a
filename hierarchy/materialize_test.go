package hierarchy_test

import (
	"context"
	"testing"

	"github.com/mwantia/blockdb/backend/memory"
	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/hierarchy"
	"github.com/stretchr/testify/require"
)

type nativeStore struct {
	*memory.MemoryBackend
	calls int
}

func (ns *nativeStore) EnsureHierarchy(ctx context.Context, tree hierarchy.Tree, root string) error {
	ns.calls++
	return hierarchy.Walk(ctx, ns.MemoryBackend, tree, root)
}

func TestMaterialize_CreatesBelowRoot(t *testing.T) {
	ctx := t.Context()
	mb, err := memory.NewMemoryBackend()
	require.NoError(t, err)

	tree := hierarchy.Tree{
		{Name: "users", Node: hierarchy.Collection(hierarchy.Tree{{Name: "bob", Node: hierarchy.EncryptedBlock()}})},
		{Name: "users", Node: hierarchy.Collection(hierarchy.Tree{{Name: "alice", Node: hierarchy.Block()}})},
	}

	require.NoError(t, hierarchy.Materialize(ctx, mb, tree, "/app/v1"))

	for _, path := range []string{"/app", "/app/v1", "/app/v1/users"} {
		found, err := mb.ContainsCollection(ctx, path)
		require.NoError(t, err)
		require.True(t, found, path)
	}

	bob, err := mb.BlockInfo(ctx, "/app/v1/users/bob")
	require.NoError(t, err)
	require.True(t, bob.Encrypted)

	alice, err := mb.BlockInfo(ctx, "/app/v1/users/alice")
	require.NoError(t, err)
	require.False(t, alice.Encrypted)
}

func TestMaterialize_PrefersNativeBackend(t *testing.T) {
	mb, err := memory.NewMemoryBackend()
	require.NoError(t, err)

	store := &nativeStore{MemoryBackend: mb}
	tree := hierarchy.Tree{{Name: "config", Node: hierarchy.Block()}}

	require.NoError(t, hierarchy.Materialize(t.Context(), store, tree, "/"))
	require.Equal(t, 1, store.calls)

	// Validation runs before the native walker is reached
	invalid := hierarchy.Tree{{Name: "", Node: hierarchy.Block()}}
	require.ErrorIs(t, hierarchy.Materialize(t.Context(), store, invalid, "/"), data.ErrInvalidHierarchySpec)
	require.Equal(t, 1, store.calls)
}

func TestMaterialize_ConflictsStopTheWalk(t *testing.T) {
	ctx := t.Context()
	mb, err := memory.NewMemoryBackend()
	require.NoError(t, err)

	require.NoError(t, mb.CreateBlock(ctx, "/taken", data.BlockOptions{}))

	tree := hierarchy.Tree{{Name: "taken", Node: hierarchy.Collection(hierarchy.Tree{{Name: "x", Node: hierarchy.Block()}})}}
	require.ErrorIs(t, hierarchy.Materialize(ctx, mb, tree, "/"), data.ErrHierarchyConflict)

	// A block as root cannot hold a hierarchy either
	require.ErrorIs(t, hierarchy.Materialize(ctx, mb, hierarchy.Tree{}, "/taken"), data.ErrHierarchyConflict)
}

func TestMaterialize_CanceledContext(t *testing.T) {
	mb, err := memory.NewMemoryBackend()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	tree := hierarchy.Tree{{Name: "a", Node: hierarchy.Block()}}
	require.ErrorIs(t, hierarchy.Materialize(ctx, mb, tree, "/"), context.Canceled)
}

func TestMaterialize_ConflictingSubtreesCreateNothing(t *testing.T) {
	ctx := t.Context()
	mb, err := memory.NewMemoryBackend()
	require.NoError(t, err)

	tree := hierarchy.Tree{{Name: "app", Node: hierarchy.Collection(
		hierarchy.Tree{{Name: "cfg", Node: hierarchy.Block()}},
		hierarchy.Tree{{Name: "cfg", Node: hierarchy.EncryptedBlock()}},
	)}}

	require.ErrorIs(t, hierarchy.Materialize(ctx, mb, tree, "/"), data.ErrInvalidHierarchySpec)

	found, err := mb.ContainsCollection(ctx, "/app")
	require.NoError(t, err)
	require.False(t, found)
}
