package mesa

import (
	"log/slog"
	"time"

	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
)

// Option defines a functional option for configuring the Host.
type Option func(*Host)

// WithLogger sets a custom structured logger for the host and every agent.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every dispatcher and publisher.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(h *Host) {
		h.hooks = hooks
	}
}

// WithAPIKeys sets the keys accepted from external callers.
func WithAPIKeys(keys ...string) Option {
	return func(h *Host) {
		h.public = auth.NewStaticKeys(keys...)
	}
}

// WithAuthenticator replaces the API key allow-list for external callers.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(h *Host) {
		h.public = a
	}
}

// WithInternalKey sets the credential agents use when calling each other.
// A random key is generated when unset.
func WithInternalKey(key string) Option {
	return func(h *Host) {
		h.internalKey = key
	}
}

// WithSnapshotStore enables Persist and Restore.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(h *Host) {
		h.store = store
	}
}

// WithLocker serializes Persist across replicas sharing one store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(h *Host) {
		h.locker = locker
	}
}

// WithDelivery configures update delivery: per-attempt timeout and optional retries.
func WithDelivery(timeout time.Duration, retries int, backoff time.Duration) Option {
	return func(h *Host) {
		h.timeout = timeout
		h.retries = retries
		h.backoff = backoff
	}
}

// WithNotifier sets the outbound sender used by the messaging agent.
func WithNotifier(n ports.Notifier) Option {
	return func(h *Host) {
		h.notifier = n
	}
}

// WithClock overrides time.Now for every agent. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		h.now = now
	}
}
