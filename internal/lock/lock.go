// Package lock provides per-key mutual exclusion used to serialise
// check-then-write sequences on a single room.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be obtained before the
// context was done.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker grants exclusive access to a key. The returned release function
// must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
