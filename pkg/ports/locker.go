package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired with DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on a key across processes sharing a backend.
// The host takes it around snapshot writes when replicas share one store.
type DistributedLocker interface {
	// Lock blocks until the lock on key is held or ctx is done.
	// The lock expires after ttl even if the UnlockFunc is never called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
