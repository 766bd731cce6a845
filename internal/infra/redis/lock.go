package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mindfulbot/internal/domain"
)

const lockRetry = 50 * time.Millisecond

// Locker serializes load-mutate-save on one conversation across replicas.
type Locker struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker holds each lock for at most ttl and waits up to wait for a
// contended one before giving up with domain.ErrBusy.
func NewLocker(client RedisClient, prefix string, ttl, wait time.Duration) *Locker {
	if prefix == "" {
		prefix = "mindfulbot:"
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl, wait: wait}
}

func LockKey(prefix, sessionID string) string {
	return fmt.Sprintf("%slock:%s", prefix, sessionID)
}

// Lock returns the release func for sessionID's lock.
func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := LockKey(l.prefix, sessionID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.Acquire(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				// the lock's own ctx may be gone by now
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_, _ = l.client.Release(rctx, key, token)
			}, nil
		}
		if time.Now().Add(lockRetry).After(deadline) {
			return nil, domain.ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetry):
		}
	}
}
