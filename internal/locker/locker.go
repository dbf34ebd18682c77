// Package locker provides per-key exclusive critical sections. The scheduling
// engine uses one lock per technician for create/reschedule and one lock per
// appointment for status transitions.
package locker

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding an exclusive lock for key. Implementations may
// either block until the lock is free or fail fast with ErrNotAcquired.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
