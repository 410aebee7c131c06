package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/ports/lock"
)

var _ lock.Locker = (*Locker)(nil)

// Locker is the distributed booking lock: one SETNX attempt, no retry loop.
// A held key means another request is mid-flight for the same booking, and
// the caller gets ErrLockContention back immediately. The TTL is a lease so
// a crashed holder cannot wedge the booking.
type Locker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *Locker {
	return &Locker{cli: c.cli}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrLockContention
	}
	return token, nil
}

// Compare-and-delete: only the holder's token may release the key, so an
// expired-and-reacquired lock is never released by the previous holder.
var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
