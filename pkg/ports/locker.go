package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes turns of one canvas session across canvas
// server processes sharing a session store.
type DistributedLocker interface {
	// Lock takes the lock for a session key and holds it for at most ttl. It
	// waits until the lock is free or ctx ends. The returned UnlockFunc must be
	// called once the turn is saved.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
