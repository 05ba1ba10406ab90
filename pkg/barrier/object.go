package barrier

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/macropower/syncbarrier/pkg/sema"
	"github.com/macropower/syncbarrier/pkg/xlock"
)

// object is the heap state behind a live barrier handle. current is guarded
// by lk; waiters counts goroutines that have arrived and are blocked (or
// about to block) on sem.
type object struct {
	lk      *xlock.Lock
	sem     *sema.Sema
	id      uuid.UUID
	waiters atomic.Int32
	initial uint32
	current uint32
}

// newObject builds the barrier state for count participants. On a semaphore
// construction failure the already-built lock is torn down before the error
// is returned, so a partial failure leaks nothing.
func newObject(count uint32, mode SharedMode) (*object, error) {
	lk := xlock.New()

	sm, err := sema.New(0, mode == ModeShared)
	if err != nil {
		_ = lk.Destroy()

		return nil, fmt.Errorf("create release semaphore: %w", err)
	}

	return &object{
		id:      uuid.New(),
		lk:      lk,
		sem:     sm,
		initial: count,
		current: count,
	}, nil
}

// arrive performs one arrival: it decrements the pending count under the
// exclusive lock and reports whether this arrival completed the generation.
// On completion the count is reset to the initial height before the lock is
// released, so the reset is never observable. For other arrivals the waiter
// count is raised while the lock is still held, so a concurrent destroy sees
// the barrier as in use before the lock opens. The lock is released on every
// exit path.
func (o *object) arrive() (last bool, err error) {
	if err := o.lk.Acquire(); err != nil {
		return false, fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer func() {
		if rerr := o.lk.Release(); rerr != nil && err == nil {
			err = fmt.Errorf("release exclusive lock: %w", rerr)
		}
	}()

	o.current--
	if o.current == 0 {
		o.current = o.initial

		return true, nil
	}

	o.waiters.Add(1)

	return false, nil
}
