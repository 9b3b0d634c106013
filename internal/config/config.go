// Package config loads server settings from a config file, MESA_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/mesa/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables: store.redis_addr is MESA_STORE_REDIS_ADDR.
const EnvPrefix = "MESA"

// Store backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the full server configuration.
type Config struct {
	Addr        string       `mapstructure:"addr"`
	APIKeys     []string     `mapstructure:"api_keys"`
	InternalKey string       `mapstructure:"internal_key"`
	SeedFile    string       `mapstructure:"seed_file"`
	Log         LogConfig    `mapstructure:"log"`
	HTTP        HTTPConfig   `mapstructure:"http"`
	Update      UpdateConfig `mapstructure:"update"`
	Store       StoreConfig  `mapstructure:"store"`
	Notify      NotifyConfig `mapstructure:"notify"`
}

// NotifyConfig selects how outbound messages leave the system.
// Without a channels file they are only logged.
type NotifyConfig struct {
	ChannelsFile string        `mapstructure:"channels_file"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	Metrics      bool  `mapstructure:"metrics"`
	Events       bool  `mapstructure:"events"`
}

// UpdateConfig tunes update event delivery. MaxRetries 0 means at-most-once.
type UpdateConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

type StoreConfig struct {
	Backend       string        `mapstructure:"backend"`
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	// EncryptionKey is a base64 AES-256 key; when set, snapshots are encrypted at rest.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

// Keys decodes the encryption keys. Both results are nil when encryption is off.
func (c StoreConfig) Keys() ([]byte, [][]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := decodeKey(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	var fallback [][]byte
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Defaults registers the default value of every key on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("api_keys", []string{})
	v.SetDefault("internal_key", "")
	v.SetDefault("seed_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.max_body_bytes", int64(1<<20))
	v.SetDefault("http.metrics", true)
	v.SetDefault("http.events", true)
	v.SetDefault("update.timeout", 5*time.Second)
	v.SetDefault("update.max_retries", 0)
	v.SetDefault("update.backoff", 100*time.Millisecond)
	v.SetDefault("store.backend", BackendNone)
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.prefix", "mesa:")
	v.SetDefault("store.ttl", time.Duration(0))
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("notify.channels_file", "")
	v.SetDefault("notify.timeout", 10*time.Second)
}

// New returns a viper instance with defaults and environment lookup configured.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	Defaults(v)
	return v
}

// BindFlags binds every flag in fs whose name maps to a config key.
// Flag names use dashes where keys use underscores; "max-body-bytes" binds "http.max_body_bytes".
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %q", flag, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads file (if set) into v, decodes it and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.APIKeys = compact(cfg.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}
	if c.Update.Timeout <= 0 {
		errs = append(errs, errors.New("update.timeout must be positive"))
	}
	if c.Update.MaxRetries < 0 {
		errs = append(errs, errors.New("update.max_retries must not be negative"))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, errors.New("notify.timeout must be positive"))
	}
	if c.Update.Backoff < 0 {
		errs = append(errs, errors.New("update.backoff must not be negative"))
	}

	if _, _, err := c.Store.Keys(); err != nil {
		errs = append(errs, err)
	}

	switch c.Store.Backend {
	case BackendNone, BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s backend", c.Store.Backend))
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	return errors.Join(errs...)
}

func compact(keys []string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
