package lock

import (
	"context"
	"time"
)

// Locker is a booking-scoped mutual-exclusion primitive. TryLock is
// fail-fast: if the key is already held it returns domain.ErrLockContention
// immediately instead of blocking, so request latency stays bounded. The TTL
// is a lease; a crashed holder's lock expires on its own.
//
// Two implementations exist: a Redis SETNX lock for multi-instance
// deployments and an in-process sharded lock table for single-instance runs
// and tests.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
