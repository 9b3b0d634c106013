package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mesa/pkg/adapters/redis"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSnapshotStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	snap, err := domain.NewSnapshot("pedidos", map[string]any{"orders": map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snap))

	agents, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, agents, "pedidos")

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "pedidos")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	// The index is pruned against wall-clock time, not miniredis time.
	time.Sleep(1200 * time.Millisecond)

	agents, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("tenant-a:"))
	ctx := context.Background()

	snap, err := domain.NewSnapshot("crm", nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snap))

	assert.True(t, mr.Exists("tenant-a:crm"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("tenant-a:index"), "Expected index with custom prefix to exist")
}

func TestLocker_Exclusive(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, "mesa:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "persist", time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "persist", time.Minute)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "persist", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}
