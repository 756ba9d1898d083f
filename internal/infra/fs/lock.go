package fs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"
)

const (
	// lockRetryMin and lockRetryJitter bound the sleep between attempts:
	// uniform in [50ms, 100ms) so contending processes drift apart.
	lockRetryMin    = 50 * time.Millisecond
	lockRetryJitter = 50 * time.Millisecond

	// lockRetryCost is charged against the timeout budget per attempt.
	// The budget counts attempts at a nominal rate rather than wall time,
	// so the effective timeout is approximate.
	lockRetryCost = 100 * time.Millisecond
)

// ErrLockTimeout is returned when a lock could not be acquired within the
// configured budget.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// errLockHeld is the platform-neutral signal that the lock is held elsewhere.
var errLockHeld = errors.New("file lock held by another process")

// Locker grants and releases exclusive locks on open files. The production
// implementation is Flock; tests substitute in-memory fakes because advisory
// locks need real file descriptors.
type Locker interface {
	// TryLock attempts the lock without blocking. It returns false with a
	// nil error when the lock is held elsewhere.
	TryLock(f *os.File) (bool, error)
	Unlock(f *os.File) error
}

// Flock locks files with the platform's advisory file lock (flock on unix,
// LockFileEx on windows). The lock is tied to the open file description and
// released by the OS if the process dies.
type Flock struct{}

func (Flock) TryLock(f *os.File) (bool, error) {
	err := flockTry(f)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errLockHeld) {
		return false, nil
	}
	return false, err
}

func (Flock) Unlock(f *os.File) error {
	return flockUnlock(f)
}

// AcquireLock acquires an exclusive lock on f, retrying with jittered sleeps
// until the timeout budget runs out. Failure to acquire in time returns
// ErrLockTimeout; a cancelled context returns its error.
func AcquireLock(ctx context.Context, locker Locker, f *os.File, timeout time.Duration) error {
	budget := timeout
	for {
		ok, err := locker.TryLock(f)
		if err != nil {
			return fmt.Errorf("lock %s: %w", f.Name(), err)
		}
		if ok {
			return nil
		}
		wait := lockRetryMin + time.Duration(rand.Int63n(int64(lockRetryJitter)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		budget -= lockRetryCost
		if budget < 0 {
			return fmt.Errorf("lock %s: %w", f.Name(), ErrLockTimeout)
		}
	}
}
