package barrier

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

// WaitResult distinguishes the two successful outcomes of [Wait].
type WaitResult int

const (
	// Released is the ordinary outcome: the generation completed and this
	// participant was released together with the others.
	Released WaitResult = iota

	// SerialThread marks the single participant per generation permitted to
	// run a once-per-generation action after the barrier opens.
	SerialThread
)

// String returns the result name.
func (w WaitResult) String() string {
	switch w {
	case Released:
		return "released"
	case SerialThread:
		return "serial"
	default:
		return fmt.Sprintf("unknown(%d)", int(w))
	}
}

// Barrier is a handle slot for one barrier. The zero value is an
// uninitialized handle that is constructed automatically on first [Wait]
// with Count participants:
//
//	var b = barrier.Barrier{Count: 3}
//
// Explicit construction with [Init] ignores Count. A destroyed handle only
// becomes usable again through an explicit [Init]; it never re-initializes
// automatically. A Barrier must not be copied after first use.
type Barrier struct {
	// Count is the participant count applied when the barrier is
	// initialized automatically on first use.
	Count uint32

	state atomic.Uint64
}

// Init constructs the barrier behind b for count participants on
// [DefaultRegistry].
func Init(b *Barrier, attr *Attr, count uint32) error {
	return DefaultRegistry.Init(b, attr, count)
}

// Wait arrives at the barrier behind b on [DefaultRegistry].
func Wait(ctx context.Context, b *Barrier) (WaitResult, error) {
	return DefaultRegistry.Wait(ctx, b)
}

// Destroy tears down the barrier behind b on [DefaultRegistry].
func Destroy(b *Barrier) error {
	return DefaultRegistry.Destroy(b)
}

// Init constructs the barrier behind b for count participants, reading the
// sharing mode from attr when non-nil. A live handle must be destroyed
// before it can be initialized again; Init on one fails with [ErrBusy].
func (r *Registry) Init(b *Barrier, attr *Attr, count uint32) error {
	if b == nil {
		return fmt.Errorf("%w: nil barrier handle", ErrInvalidArgument)
	}
	if count == 0 {
		return fmt.Errorf("%w: participant count must be positive", ErrInvalidArgument)
	}

	mode := ModePrivate
	if attr != nil {
		m, err := attr.Shared()
		if err != nil {
			return err
		}
		mode = m
	}

	st := b.state.Load()
	if st != stateAutoInit && st != stateDestroyed {
		return fmt.Errorf("%w: handle already initialized", ErrBusy)
	}

	obj, err := newObject(count, mode)
	if err != nil {
		return err
	}

	packed, err := r.allocate(obj)
	if err != nil {
		// Unwind the constructed sub-resources; a partial failure must not
		// leak anything.
		_ = obj.sem.Destroy()
		_ = obj.lk.Destroy()

		return err
	}

	if !b.state.CompareAndSwap(st, packed) {
		// Lost a race with another Init, Destroy, or auto-init on the same
		// handle.
		_ = obj.sem.Destroy()
		_ = obj.lk.Destroy()
		r.release(packed)

		return fmt.Errorf("%w: handle changed concurrently", ErrBusy)
	}

	r.logger.Debug("barrier initialized",
		slog.String("barrier", obj.id.String()),
		slog.Uint64("count", uint64(count)),
		slog.String("mode", mode.String()),
	)

	return nil
}

// checkNeedInit resolves an auto-init sentinel observed outside the guard.
// The unguarded sighting is only a hint: the state is re-read under the
// guard, since another goroutine may have initialized or destroyed the
// handle in the meantime.
func (r *Registry) checkNeedInit(b *Barrier) error {
	r.guard.Lock()
	defer r.guard.Unlock()

	switch st := b.state.Load(); st {
	case stateAutoInit:
		if err := r.Init(b, nil, b.Count); err != nil {
			return err
		}

		r.logger.Debug("barrier auto-initialized",
			slog.Uint64("count", uint64(b.Count)),
		)

		return nil
	case stateDestroyed:
		// Destroyed before it was ever initialized; the operation that
		// triggered the auto-init must not proceed.
		return fmt.Errorf("%w: barrier destroyed before first use", ErrInvalidArgument)
	default:
		// Another goroutine completed initialization.
		return nil
	}
}

// Wait blocks until all participants of the current generation have arrived,
// then releases them together and resets the barrier for the next
// generation. Exactly one caller per generation receives [SerialThread]; the
// rest receive [Released]. No ordering is guaranteed among released callers.
//
// ctx is observed only while blocked waiting for the generation to complete,
// never during the arrival bookkeeping itself. A caller cancelled mid-wait
// has still arrived: its decrement is not refunded, so the generation
// completes once the remaining participants arrive. Its unconsumed release
// permit remains with the semaphore, so a barrier that saw a cancellation
// should be destroyed rather than reused.
func (r *Registry) Wait(ctx context.Context, b *Barrier) (WaitResult, error) {
	if b == nil {
		return Released, fmt.Errorf("%w: nil barrier handle", ErrInvalidArgument)
	}

	if b.state.Load() == stateAutoInit {
		if err := r.checkNeedInit(b); err != nil {
			return Released, err
		}
	}

	st := b.state.Load()
	if st == stateDestroyed {
		return Released, fmt.Errorf("%w: barrier destroyed", ErrInvalidArgument)
	}

	obj, err := r.resolve(st)
	if err != nil {
		return Released, err
	}

	last, err := obj.arrive()
	if err != nil {
		return Released, err
	}

	if last {
		// Open the barrier: one permit per participant already arrived.
		if obj.initial > 1 {
			if err := obj.sem.Post(int64(obj.initial) - 1); err != nil {
				return Released, fmt.Errorf("release waiters: %w", err)
			}
		}

		return SerialThread, nil
	}

	defer obj.waiters.Add(-1)

	if err := obj.sem.Wait(ctx); err != nil {
		return Released, fmt.Errorf("wait for release: %w", err)
	}

	return Released, nil
}

// Destroy tears down the barrier behind b and marks the handle destroyed. A
// barrier whose exclusive lock is held or that has blocked waiters fails
// with [ErrBusy] and is left intact; retrying is the caller's choice.
// Destroying an auto-init handle that was never used marks it destroyed
// without building anything.
func (r *Registry) Destroy(b *Barrier) error {
	if b == nil {
		return fmt.Errorf("%w: nil barrier handle", ErrInvalidArgument)
	}

	st := b.state.Load()
	switch st {
	case stateDestroyed:
		return fmt.Errorf("%w: barrier already destroyed", ErrInvalidArgument)
	case stateAutoInit:
		return r.destroySentinel(b)
	}

	obj, err := r.resolve(st)
	if err != nil {
		return err
	}

	ok, err := obj.lk.TryAcquire()
	if err != nil {
		return fmt.Errorf("acquire exclusive lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: exclusive lock held", ErrBusy)
	}
	if obj.waiters.Load() != 0 {
		_ = obj.lk.Release()

		return fmt.Errorf("%w: waiters blocked on barrier", ErrBusy)
	}

	// Invalidate the handle and its slot before tearing resources down, so a
	// concurrent Wait resolves to a stale-handle error instead of a
	// half-destroyed object.
	if !b.state.CompareAndSwap(st, stateDestroyed) {
		_ = obj.lk.Release()

		return fmt.Errorf("%w: handle changed concurrently", ErrInvalidArgument)
	}
	r.release(st)

	var merr *multierror.Error
	if err := obj.sem.Destroy(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("destroy release semaphore: %w", err))
	}
	if err := obj.lk.Release(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("release exclusive lock: %w", err))
	}
	if err := obj.lk.Destroy(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("destroy exclusive lock: %w", err))
	}
	if err := merr.ErrorOrNil(); err != nil {
		return err
	}

	r.logger.Debug("barrier destroyed",
		slog.String("barrier", obj.id.String()),
	)

	return nil
}

// destroySentinel destroys a handle still in its auto-init state. The state
// is re-read under the lazy-init guard: losing the race to an auto-init
// means the barrier is now in use.
func (r *Registry) destroySentinel(b *Barrier) error {
	r.guard.Lock()
	defer r.guard.Unlock()

	switch st := b.state.Load(); st {
	case stateAutoInit:
		if !b.state.CompareAndSwap(stateAutoInit, stateDestroyed) {
			// An explicit Init slipped in between the load and the swap.
			return fmt.Errorf("%w: barrier initialized concurrently", ErrBusy)
		}

		return nil
	case stateDestroyed:
		return fmt.Errorf("%w: barrier already destroyed", ErrInvalidArgument)
	default:
		return fmt.Errorf("%w: barrier initialized concurrently", ErrBusy)
	}
}
