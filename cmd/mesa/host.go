package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/mesa"
	"github.com/aretw0/mesa/internal/config"
	"github.com/aretw0/mesa/internal/logging"
	"github.com/aretw0/mesa/pkg/adapters/file"
	"github.com/aretw0/mesa/pkg/adapters/memory"
	"github.com/aretw0/mesa/pkg/adapters/notify"
	"github.com/aretw0/mesa/pkg/adapters/process"
	"github.com/aretw0/mesa/pkg/adapters/redis"
	"github.com/aretw0/mesa/pkg/adapters/sqlite"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/persistence/middleware"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/spf13/cobra"
)

// serverFlags maps command flags to config keys.
var serverFlags = map[string]string{
	"addr":           "addr",
	"api-key":        "api_keys",
	"seed":           "seed_file",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"max-body-bytes": "http.max_body_bytes",
	"store":          "store.backend",
	"store-path":     "store.path",
	"redis-addr":     "store.redis_addr",
	"channels":       "notify.channels_file",
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().StringSlice("api-key", nil, "API key accepted from callers (repeatable)")
	cmd.Flags().String("seed", "", "Seed file with menu, inventory, promotions and customers")
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
	cmd.Flags().String("log-format", "text", "Log format: text or json")
	cmd.Flags().Int64("max-body-bytes", 1<<20, "Maximum request body size")
	cmd.Flags().String("store", config.BackendNone, "Snapshot store: none, memory, file, redis or sqlite")
	cmd.Flags().String("store-path", "", "Directory (file) or database path (sqlite)")
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address (redis store)")
	cmd.Flags().String("channels", "", "File mapping notification channels to delivery commands")
}

// loadConfig resolves flags, environment and the --config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags(), serverFlags); err != nil {
		return nil, err
	}
	file, _ := cmd.Flags().GetString("config")
	return config.Load(v, file)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	return logging.New(level, cfg.Log.Format)
}

// openStore builds the snapshot store selected by cfg, encrypted when a key is configured.
// The returned close function is never nil.
func openStore(cfg config.StoreConfig) (ports.SnapshotStore, ports.DistributedLocker, func() error, error) {
	store, locker, closeFn, err := openBackend(cfg)
	if err != nil || store == nil {
		return store, locker, closeFn, err
	}

	active, fallback, err := cfg.Keys()
	if err != nil {
		_ = closeFn()
		return nil, nil, func() error { return nil }, err
	}
	if active == nil {
		return store, locker, closeFn, nil
	}
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
	if err != nil {
		_ = closeFn()
		return nil, nil, func() error { return nil }, err
	}
	return middleware.Chain(store, mw), locker, closeFn, nil
}

func openBackend(cfg config.StoreConfig) (ports.SnapshotStore, ports.DistributedLocker, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil, noop, nil
	case config.BackendMemory:
		return memory.NewStore(), nil, noop, nil
	case config.BackendFile:
		return file.New(filepath.Clean(cfg.Path)), nil, noop, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil, s.Close, nil
	case config.BackendRedis:
		var opts []redis.Option
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		s := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		return s, redis.NewLocker(s.Client(), cfg.Prefix), s.Close, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newNotifier runs the configured channel commands, or only logs when none are configured.
func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (ports.Notifier, error) {
	if cfg.ChannelsFile == "" {
		return notify.NewLog(logger.With("component", "notifier")), nil
	}
	channels, err := process.LoadChannels(cfg.ChannelsFile)
	if err != nil {
		return nil, err
	}
	return process.NewNotifier(
		process.WithRegistry(channels),
		process.WithBaseDir(filepath.Dir(cfg.ChannelsFile)),
		process.WithTimeout(cfg.Timeout),
	), nil
}

// hostOptions translates cfg into host options. Hooks are passed by the caller.
func hostOptions(cfg *config.Config, logger *slog.Logger, store ports.SnapshotStore, locker ports.DistributedLocker) ([]mesa.Option, error) {
	notifier, err := newNotifier(cfg.Notify, logger)
	if err != nil {
		return nil, err
	}
	opts := []mesa.Option{
		mesa.WithLogger(logger),
		mesa.WithAPIKeys(cfg.APIKeys...),
		mesa.WithDelivery(cfg.Update.Timeout, cfg.Update.MaxRetries, cfg.Update.Backoff),
		mesa.WithNotifier(notifier),
	}
	if cfg.InternalKey != "" {
		opts = append(opts, mesa.WithInternalKey(cfg.InternalKey))
	}
	if store != nil {
		opts = append(opts, mesa.WithSnapshotStore(store))
	}
	if locker != nil {
		opts = append(opts, mesa.WithLocker(locker))
	}
	return opts, nil
}

var errNoKeys = errors.New("no API keys configured: every request would be rejected (set --api-key or MESA_API_KEYS)")

// agentArg validates the agent type given on the command line.
func agentArg(h *mesa.Host, name string) error {
	if _, err := h.Methods(name); err != nil {
		if errors.Is(err, domain.ErrUnknownAgent) {
			return fmt.Errorf("%w (known: %v)", err, h.Agents())
		}
		return err
	}
	return nil
}
