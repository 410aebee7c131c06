package memlock

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/ports/lock"
)

var _ lock.Locker = (*Locker)(nil)

const shardCount = 32

type entry struct {
	token     string
	expiresAt time.Time
}

type shard struct {
	mu   sync.Mutex
	held map[string]entry
}

// Locker is an in-process sharded lock table keyed by booking id. It has the
// same fail-fast contract as the Redis locker and is the right choice for a
// single-instance deployment (and for tests): no network hop, no external
// dependency.
type Locker struct {
	shards [shardCount]*shard
}

func New() *Locker {
	l := &Locker{}
	for i := range l.shards {
		l.shards[i] = &shard{held: make(map[string]entry)}
	}
	return l
}

func (l *Locker) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.held[key]; ok && now.Before(e.expiresAt) {
		return "", domain.ErrLockContention
	}
	token := uuid.NewString()
	s.held[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Unlock(_ context.Context, key, token string) error {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.held[key]; ok && e.token == token {
		delete(s.held, key)
	}
	return nil
}
