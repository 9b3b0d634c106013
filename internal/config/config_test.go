package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/mesa/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.APIKeys)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, 5*time.Second, cfg.Update.Timeout)
	assert.Zero(t, cfg.Update.MaxRetries)
	assert.Equal(t, config.BackendNone, cfg.Store.Backend)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
api_keys: [a, b]
log:
  format: json
update:
  timeout: 2s
  max_retries: 3
  backoff: 50ms
store:
  backend: sqlite
  path: /tmp/mesa.db
`), 0o644))

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"a", "b"}, cfg.APIKeys)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2*time.Second, cfg.Update.Timeout)
	assert.Equal(t, 3, cfg.Update.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Update.Backoff)
	assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MESA_API_KEYS", "k1, k2,")
	t.Setenv("MESA_STORE_BACKEND", "redis")
	t.Setenv("MESA_STORE_REDIS_ADDR", "cache:6379")
	t.Setenv("MESA_UPDATE_TIMEOUT", "750ms")

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2"}, cfg.APIKeys)
	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.Update.Timeout)
}

func TestBindFlags_Precedence(t *testing.T) {
	t.Setenv("MESA_ADDR", ":7000")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("addr", ":8080", "")
	fs.Int64("max-body-bytes", 0, "")
	require.NoError(t, fs.Parse([]string{"--addr", ":6000"}))

	v := config.New()
	require.NoError(t, config.BindFlags(v, fs, map[string]string{
		"addr":           "addr",
		"max-body-bytes": "http.max_body_bytes",
	}))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Addr, "a set flag wins over the environment")
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes, "an unset flag keeps the default")

	assert.Error(t, config.BindFlags(v, fs, map[string]string{"nope": "addr"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"level", func(c *config.Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"body", func(c *config.Config) { c.HTTP.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"timeout", func(c *config.Config) { c.Update.Timeout = 0 }, "update.timeout"},
		{"retries", func(c *config.Config) { c.Update.MaxRetries = -1 }, "max_retries"},
		{"file path", func(c *config.Config) { c.Store.Backend = config.BackendFile }, "store.path"},
		{"backend", func(c *config.Config) { c.Store.Backend = "mongo" }, "unknown store.backend"},
		{"key", func(c *config.Config) { c.Store.EncryptionKey = "c2hvcnQ=" }, "store.encryption_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(config.New(), "")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStoreKeys(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))

	active, fallback, err := config.StoreConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallback)

	active, fallback, err = config.StoreConfig{EncryptionKey: key, FallbackKeys: []string{key}}.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 1)

	_, _, err = config.StoreConfig{EncryptionKey: key, FallbackKeys: []string{"!!"}}.Keys()
	assert.ErrorContains(t, err, "store.fallback_keys[0]")
}
