// Package lock provides a lease-based mutual-exclusion lock backed by the
// key-value store. Correctness holds across processes because the store is
// the sole arbiter: acquire is a single set-if-absent with TTL, release is a
// single compare-token-and-delete.
//
// The lease bounds how long a crashed holder can block others, but there is
// no fencing token: a holder that stalls past its own lease and resumes can
// race the next holder. Callers that need stronger guarantees must attach
// fencing at the protected resource.
package lock

import (
	"context"
	"time"

	"github.com/flashmart/seckill/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "lock:"

// Lock is a named lease. Each Lock instance carries its own holder token, so
// release can never delete a lease acquired by a different holder after this
// one expired.
type Lock struct {
	kv     store.KeyValueStore
	name   string
	token  string
	logger *zap.Logger
}

// New creates a lock handle for the named resource
func New(kv store.KeyValueStore, name string, logger *zap.Logger) *Lock {
	return &Lock{
		kv:     kv,
		name:   name,
		token:  uuid.New().String(),
		logger: logger,
	}
}

// TryLock attempts to acquire the lease without blocking. Returns false when
// the lock is already held; callers choose whether to retry, back off, or
// fail fast.
func (l *Lock) TryLock(ctx context.Context, lease time.Duration) (bool, error) {
	return l.kv.SetNX(ctx, keyPrefix+l.name, l.token, lease)
}

// Unlock releases the lease if this holder still owns it. If the lease
// already expired and someone else re-acquired it, the release is a safe
// no-op.
func (l *Lock) Unlock(ctx context.Context) error {
	released, err := l.kv.CompareAndDelete(ctx, keyPrefix+l.name, l.token)
	if err != nil {
		return err
	}
	if !released {
		l.logger.Debug("Lease no longer held at release",
			zap.String("lock", l.name))
	}
	return nil
}
