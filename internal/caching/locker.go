package caching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when another instance holds the lock
var ErrLockBusy = errors.New("operation already in progress")

// Locker provides cross-instance mutual exclusion
type Locker interface {
	// WithLock runs fn while holding key. It does not wait for a busy lock.
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: redislock.New(client)}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%w: %s", ErrLockBusy, key)
	} else if err != nil {
		return fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	defer func() {
		// a cancelled request must not keep the key held
		_ = lock.Release(context.Background())
	}()

	return fn(ctx)
}

// PairLockKey names the lock guarding a rebuild of one stock pair
func PairLockKey(plantID, itemID fmt.Stringer) string {
	return fmt.Sprintf("lock:stock:%s:%s", plantID, itemID)
}

const (
	ImportLockKey    = "lock:import:inventory"
	ReconcileLockKey = "lock:stock:reconcile"
)
