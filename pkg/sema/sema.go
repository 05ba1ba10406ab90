package sema

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// MaxCount bounds the number of permits a Sema can hold at once.
const MaxCount = 1 << 30

var (
	// ErrDestroyed reports an operation on a destroyed semaphore.
	ErrDestroyed = errors.New("semaphore destroyed")

	// ErrBusy reports a destroy attempt while goroutines are blocked in Wait.
	ErrBusy = errors.New("semaphore has blocked waiters")

	// ErrUnsupported reports a request for a process-shared semaphore, which
	// this in-process implementation cannot provide.
	ErrUnsupported = errors.New("process-shared semaphores are not supported")
)

// Supported reports whether semaphores can be shared across process
// boundaries. This implementation lives entirely in process memory, so it
// always reports false.
func Supported() bool {
	return false
}

// Sema is a counting semaphore. Wait consumes one permit, blocking until one
// is available; Post grants n permits in a single atomic step, so a bulk
// release is never observed partially applied.
//
// A Sema must be created with [New].
type Sema struct {
	w         *semaphore.Weighted
	waiters   atomic.Int64
	destroyed atomic.Bool
}

// New creates a semaphore holding initial permits. Requesting a
// process-shared semaphore fails with [ErrUnsupported] when [Supported]
// reports false.
func New(initial int64, shared bool) (*Sema, error) {
	if shared && !Supported() {
		return nil, ErrUnsupported
	}
	if initial < 0 || initial > MaxCount {
		return nil, fmt.Errorf("initial count %d outside [0, %d]", initial, MaxCount)
	}

	w := semaphore.NewWeighted(MaxCount)
	if initial < MaxCount {
		// Claim the headroom above the initial count. The weighted semaphore
		// starts with all capacity free, so this cannot fail.
		_ = w.TryAcquire(MaxCount - initial)
	}

	return &Sema{w: w}, nil
}

// Wait consumes one permit, blocking until a permit is available or ctx is
// done. The ctx error is returned wrapped and can be matched with
// [errors.Is].
func (s *Sema) Wait(ctx context.Context) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}

	s.waiters.Add(1)
	defer s.waiters.Add(-1)

	if err := s.w.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire permit: %w", err)
	}

	return nil
}

// Post grants n permits in one atomic step, waking up to n blocked waiters.
// Granting more permits than [MaxCount] allows outstanding panics, matching
// the conventions of the sync package for gross misuse.
func (s *Sema) Post(n int64) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	if n <= 0 {
		return fmt.Errorf("post count %d must be positive", n)
	}

	s.w.Release(n)

	return nil
}

// Destroy marks the semaphore unusable; subsequent operations fail with
// [ErrDestroyed]. Destroying a semaphore with blocked waiters fails with
// [ErrBusy] and leaves it intact.
func (s *Sema) Destroy() error {
	if s.waiters.Load() != 0 {
		return ErrBusy
	}
	if !s.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}

	return nil
}
