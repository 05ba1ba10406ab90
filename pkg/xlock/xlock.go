package xlock

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrDestroyed reports an operation on a destroyed lock.
	ErrDestroyed = errors.New("lock destroyed")

	// ErrBusy reports a destroy attempt while the lock is held.
	ErrBusy = errors.New("lock is held")
)

// Lock is an exclusive lock with an explicit lifecycle. Operations on a
// destroyed Lock fail with [ErrDestroyed] rather than corrupting state.
//
// A Lock must be created with [New].
type Lock struct {
	mu        sync.Mutex
	destroyed atomic.Bool
}

// New creates a new [Lock].
func New() *Lock {
	return &Lock{}
}

// Acquire blocks until the caller holds the lock.
func (l *Lock) Acquire() error {
	if l.destroyed.Load() {
		return ErrDestroyed
	}

	l.mu.Lock()

	// Destroy may have won the lock and invalidated it while we were blocked.
	if l.destroyed.Load() {
		l.mu.Unlock()

		return ErrDestroyed
	}

	return nil
}

// TryAcquire takes the lock without blocking. It reports false when the lock
// is held by another goroutine.
func (l *Lock) TryAcquire() (bool, error) {
	if l.destroyed.Load() {
		return false, ErrDestroyed
	}

	if !l.mu.TryLock() {
		return false, nil
	}

	if l.destroyed.Load() {
		l.mu.Unlock()

		return false, ErrDestroyed
	}

	return true, nil
}

// Release releases the lock. The caller must hold it.
func (l *Lock) Release() error {
	if l.destroyed.Load() {
		return ErrDestroyed
	}

	l.mu.Unlock()

	return nil
}

// Destroy marks the lock unusable; subsequent operations fail with
// [ErrDestroyed]. Destroying a held lock fails with [ErrBusy] and leaves it
// intact.
func (l *Lock) Destroy() error {
	if !l.mu.TryLock() {
		if l.destroyed.Load() {
			return ErrDestroyed
		}

		return ErrBusy
	}

	if !l.destroyed.CompareAndSwap(false, true) {
		l.mu.Unlock()

		return ErrDestroyed
	}

	l.mu.Unlock()

	return nil
}
