package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLockNotHeld is returned when unlock finds the lock already expired or
// taken over.
var ErrLockNotHeld = errors.New("lock was not held or already expired")

// LockManager provides cross-process advisory locks via the redlock
// algorithm. Consumed by schedulers and retention sweeps; the transaction
// engine never takes cross-process locks itself, it relies on store row
// locks.
type LockManager struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

func NewLockManager(client *goredislib.Client) *LockManager {
	return &LockManager{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: 10 * time.Second,
		tries:  3,
	}
}

// WithLock runs fn while holding the named lock. The lock auto-expires so a
// crashed holder cannot wedge other processes.
func (m *LockManager) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mutex := m.rs.NewMutex(key,
		redsync.WithExpiry(m.expiry),
		redsync.WithTries(m.tries),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("acquire lock %q: %w", key, err)
	}
	defer func() {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("advisory lock release failed")
			return
		}
		if !ok {
			log.Warn().Str("key", key).Err(ErrLockNotHeld).Msg("advisory lock expired before release")
		}
	}()

	return fn(ctx)
}
