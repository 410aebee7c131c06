package memlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecotrail-payments/internal/domain"
)

func TestTryLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second holder fails fast", func(t *testing.T) {
		l := New()
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); err != nil {
			t.Fatalf("first lock: %v", err)
		}
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); !errors.Is(err, domain.ErrLockContention) {
			t.Fatalf("err = %v, want ErrLockContention", err)
		}
	})

	t.Run("different keys do not contend", func(t *testing.T) {
		l := New()
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); err != nil {
			t.Fatalf("lock bk-1: %v", err)
		}
		if _, err := l.TryLock(ctx, "bk-2", time.Minute); err != nil {
			t.Fatalf("lock bk-2: %v", err)
		}
	})

	t.Run("unlock frees the key", func(t *testing.T) {
		l := New()
		token, err := l.TryLock(ctx, "bk-1", time.Minute)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		if err := l.Unlock(ctx, "bk-1", token); err != nil {
			t.Fatalf("unlock: %v", err)
		}
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); err != nil {
			t.Fatalf("relock after unlock: %v", err)
		}
	})

	t.Run("unlock with a stale token is a no-op", func(t *testing.T) {
		l := New()
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); err != nil {
			t.Fatalf("lock: %v", err)
		}
		if err := l.Unlock(ctx, "bk-1", "not-the-token"); err != nil {
			t.Fatalf("unlock: %v", err)
		}
		// still held by the original owner
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); !errors.Is(err, domain.ErrLockContention) {
			t.Fatalf("err = %v, want ErrLockContention", err)
		}
	})

	t.Run("expired lock can be re-acquired", func(t *testing.T) {
		l := New()
		if _, err := l.TryLock(ctx, "bk-1", time.Millisecond); err != nil {
			t.Fatalf("lock: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		if _, err := l.TryLock(ctx, "bk-1", time.Minute); err != nil {
			t.Fatalf("relock after expiry: %v", err)
		}
	})
}

func TestTryLockConcurrent(t *testing.T) {
	l := New()
	ctx := context.Background()

	const n = 64
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.TryLock(ctx, "bk-1", time.Minute); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}
