package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/mesa/pkg/adapters/memory"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSnapshotStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap, err := domain.NewSnapshot("estoque", map[string]int{"item-1": 1})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snap))

	snap.Data[0] = '!'
	loaded, err := store.Load(ctx, "estoque")
	require.NoError(t, err)
	assert.JSONEq(t, `{"item-1":1}`, string(loaded.Data))
}
