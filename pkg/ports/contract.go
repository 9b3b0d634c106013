package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	agent := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap, err := domain.NewSnapshot(agent, map[string]any{"items": map[string]any{"item-1": 3}})
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx, agent)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, agent, loaded.Agent)
		assert.JSONEq(t, `{"items":{"item-1":3}}`, string(loaded.Data))
		assert.False(t, loaded.SavedAt.IsZero())
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		first, _ := domain.NewSnapshot(agent, map[string]int{"v": 1})
		second, _ := domain.NewSnapshot(agent, map[string]int{"v": 2})
		require.NoError(t, store.Save(ctx, first))
		require.NoError(t, store.Save(ctx, second))

		loaded, err := store.Load(ctx, agent)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(loaded.Data))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+agent)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		snap, _ := domain.NewSnapshot(agent, map[string]int{})
		require.NoError(t, store.Save(ctx, snap))

		require.NoError(t, store.Delete(ctx, agent), "Delete should not return error")

		_, err := store.Load(ctx, agent)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
		assert.NoError(t, store.Delete(ctx, agent), "deleting twice is fine")
	})

	t.Run("List", func(t *testing.T) {
		a1, a2 := agent+"-1", agent+"-2"
		s1, _ := domain.NewSnapshot(a1, nil)
		s2, _ := domain.NewSnapshot(a2, nil)
		require.NoError(t, store.Save(ctx, s1))
		require.NoError(t, store.Save(ctx, s2))
		defer func() {
			_ = store.Delete(ctx, a1)
			_ = store.Delete(ctx, a2)
		}()

		agents, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, agents, a1)
		assert.Contains(t, agents, a2)
	})
}
