package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/mesa/pkg/adapters/memory"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/persistence/middleware"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secure(t *testing.T, next ports.SnapshotStore, cfg middleware.EncryptionConfig) ports.SnapshotStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return middleware.Chain(next, mw)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, secure(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	snap, err := domain.NewSnapshot("crm", map[string]any{"phone": "+5511999990000"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snap))

	raw, err := underlying.Load(ctx, "crm")
	require.NoError(t, err)
	assert.NotContains(t, string(raw.Data), "+5511999990000")
	assert.Contains(t, string(raw.Data), "__encrypted__")
	assert.Equal(t, "crm", raw.Agent)

	loaded, err := store.Load(ctx, "crm")
	require.NoError(t, err)
	assert.JSONEq(t, string(snap.Data), string(loaded.Data))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	snap, err := domain.NewSnapshot("pedidos", map[string]any{"orders": map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, secure(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, snap))

	_, err = secure(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey}).Load(ctx, "pedidos")
	assert.Error(t, err, "new key alone cannot decrypt")

	rotated := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "pedidos")
	require.NoError(t, err)
	assert.JSONEq(t, string(snap.Data), string(loaded.Data))
}

func TestEncryptionMiddleware_RejectsPlaintext(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()

	snap, err := domain.NewSnapshot("crm", map[string]any{"customers": map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, underlying.Save(ctx, snap))

	_, err = secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "crm")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestNewEncryptionMiddleware_KeySize(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}
