package barrier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/syncbarrier/pkg/barrier"
)

// runGeneration spawns n participants on b and returns their results once
// every call has returned.
func runGeneration(t *testing.T, r *barrier.Registry, b *barrier.Barrier, n int) []barrier.WaitResult {
	t.Helper()

	var (
		mu      sync.Mutex
		results []barrier.WaitResult
	)

	g := new(errgroup.Group)
	for range n {
		g.Go(func() error {
			res, err := r.Wait(context.Background(), b)
			if err != nil {
				return err
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			return nil
		})
	}
	require.NoError(t, g.Wait())

	return results
}

func countSerial(results []barrier.WaitResult) int {
	serial := 0
	for _, res := range results {
		if res == barrier.SerialThread {
			serial++
		}
	}

	return serial
}

func TestWait_ReleasesAllParticipants(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		count uint32
	}{
		"single participant": {count: 1},
		"pair":               {count: 2},
		"three":              {count: 3},
		"many":               {count: 32},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := barrier.NewRegistry()

			b := &barrier.Barrier{}
			require.NoError(t, r.Init(b, nil, tc.count))

			results := runGeneration(t, r, b, int(tc.count))
			assert.Len(t, results, int(tc.count))
			assert.Equal(t, 1, countSerial(results),
				"exactly one participant must be the serial thread")

			require.NoError(t, r.Destroy(b))
		})
	}
}

func TestWait_Reusable(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry()

	b := &barrier.Barrier{}
	require.NoError(t, r.Init(b, nil, 3))

	// Three back-to-back generations over the same barrier; the arrival
	// count must reset to the initial height every time.
	for range 3 {
		results := runGeneration(t, r, b, 3)

		assert.Len(t, results, 3)
		assert.Equal(t, 1, countSerial(results))
	}

	require.NoError(t, r.Destroy(b))
}

func TestInit_Errors(t *testing.T) {
	t.Parallel()

	t.Run("nil handle", func(t *testing.T) {
		t.Parallel()

		err := barrier.Init(nil, nil, 3)
		require.ErrorIs(t, err, barrier.ErrInvalidArgument)
	})

	t.Run("zero count", func(t *testing.T) {
		t.Parallel()

		err := barrier.Init(&barrier.Barrier{}, nil, 0)
		require.ErrorIs(t, err, barrier.ErrInvalidArgument)
	})

	t.Run("live handle", func(t *testing.T) {
		t.Parallel()

		r := barrier.NewRegistry()

		b := &barrier.Barrier{}
		require.NoError(t, r.Init(b, nil, 2))

		err := r.Init(b, nil, 2)
		require.ErrorIs(t, err, barrier.ErrBusy)

		require.NoError(t, r.Destroy(b))
	})
}

func TestWait_DestroyedHandle(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry()

	b := &barrier.Barrier{}
	require.NoError(t, r.Init(b, nil, 2))
	require.NoError(t, r.Destroy(b))

	// Must fail immediately, not block.
	_, err := r.Wait(context.Background(), b)
	require.ErrorIs(t, err, barrier.ErrInvalidArgument)
}

func TestWait_NilHandle(t *testing.T) {
	t.Parallel()

	_, err := barrier.Wait(context.Background(), nil)
	require.ErrorIs(t, err, barrier.ErrInvalidArgument)
}

func TestWait_AutoInit(t *testing.T) {
	t.Parallel()

	t.Run("concurrent first use", func(t *testing.T) {
		t.Parallel()

		r := barrier.NewRegistry()

		// Statically declared handle; every participant races to resolve the
		// sentinel on first use.
		b := &barrier.Barrier{Count: 4}

		results := runGeneration(t, r, b, 4)
		assert.Len(t, results, 4)
		assert.Equal(t, 1, countSerial(results))

		require.NoError(t, r.Destroy(b))
	})

	t.Run("zero count fails", func(t *testing.T) {
		t.Parallel()

		r := barrier.NewRegistry()

		b := &barrier.Barrier{}
		_, err := r.Wait(context.Background(), b)
		require.ErrorIs(t, err, barrier.ErrInvalidArgument)
	})

	t.Run("destroyed sentinel never auto-reinitializes", func(t *testing.T) {
		t.Parallel()

		r := barrier.NewRegistry()

		b := &barrier.Barrier{Count: 2}
		require.NoError(t, r.Destroy(b))

		g := new(errgroup.Group)
		for range 2 {
			g.Go(func() error {
				_, err := r.Wait(context.Background(), b)
				if err == nil {
					return errors.New("wait on destroyed sentinel unexpectedly succeeded")
				}
				if !errors.Is(err, barrier.ErrInvalidArgument) {
					return err
				}

				return nil
			})
		}
		require.NoError(t, g.Wait())

		// Only an explicit Init may revive a destroyed handle.
		require.NoError(t, r.Init(b, nil, 2))

		results := runGeneration(t, r, b, 2)
		assert.Equal(t, 1, countSerial(results))

		require.NoError(t, r.Destroy(b))
	})
}

func TestDestroy_Sentinel(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry()

	b := &barrier.Barrier{Count: 2}
	require.NoError(t, r.Destroy(b))

	err := r.Destroy(b)
	require.ErrorIs(t, err, barrier.ErrInvalidArgument)
}

func TestDestroy_Errors(t *testing.T) {
	t.Parallel()

	t.Run("nil handle", func(t *testing.T) {
		t.Parallel()

		err := barrier.Destroy(nil)
		require.ErrorIs(t, err, barrier.ErrInvalidArgument)
	})

	t.Run("already destroyed", func(t *testing.T) {
		t.Parallel()

		r := barrier.NewRegistry()

		b := &barrier.Barrier{}
		require.NoError(t, r.Init(b, nil, 1))
		require.NoError(t, r.Destroy(b))

		err := r.Destroy(b)
		require.ErrorIs(t, err, barrier.ErrInvalidArgument)
	})
}

func TestDestroy_BusyWhileWaiterBlocked(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry()

	b := &barrier.Barrier{}
	require.NoError(t, r.Init(b, nil, 2))

	waiterErr := make(chan error, 1)
	go func() {
		_, err := r.Wait(context.Background(), b)
		waiterErr <- err
	}()

	// Let the waiter arrive and block on the release semaphore.
	time.Sleep(100 * time.Millisecond)

	err := r.Destroy(b)
	require.ErrorIs(t, err, barrier.ErrBusy)

	// Complete the generation; the blocked waiter must be released.
	res, err := r.Wait(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, barrier.SerialThread, res)

	require.NoError(t, <-waiterErr)
	require.NoError(t, r.Destroy(b))
}

func TestWait_Cancellation(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry()

	b := &barrier.Barrier{}
	require.NoError(t, r.Init(b, nil, 3))

	ctx, cancel := context.WithCancel(context.Background())

	cancelledErr := make(chan error, 1)
	go func() {
		_, err := r.Wait(ctx, b)
		cancelledErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-cancelledErr
	require.ErrorIs(t, err, context.Canceled)

	// The cancelled waiter still counts as arrived and must not leave the
	// exclusive lock held: two more arrivals complete the generation.
	results := runGeneration(t, r, b, 2)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, countSerial(results))

	require.NoError(t, r.Destroy(b))
}

func TestInit_Exhaustion(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry(barrier.WithMaxBarriers(1))

	b1 := &barrier.Barrier{}
	require.NoError(t, r.Init(b1, nil, 1))

	b2 := &barrier.Barrier{}
	err := r.Init(b2, nil, 1)
	require.ErrorIs(t, err, barrier.ErrExhausted)

	// A failed Init leaks nothing: destroying the live barrier frees the
	// slot for reuse.
	require.NoError(t, r.Destroy(b1))
	require.NoError(t, r.Init(b2, nil, 1))
	require.NoError(t, r.Destroy(b2))
}

func TestEndToEnd_TwoGenerations(t *testing.T) {
	t.Parallel()

	r := barrier.NewRegistry()

	b := &barrier.Barrier{}
	require.NoError(t, r.Init(b, nil, 3))

	first := runGeneration(t, r, b, 3)
	assert.ElementsMatch(t,
		[]barrier.WaitResult{barrier.SerialThread, barrier.Released, barrier.Released},
		first)

	second := runGeneration(t, r, b, 3)
	assert.ElementsMatch(t,
		[]barrier.WaitResult{barrier.SerialThread, barrier.Released, barrier.Released},
		second)

	require.NoError(t, r.Destroy(b))
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	b := &barrier.Barrier{}
	require.NoError(t, barrier.Init(b, nil, 2))

	g := new(errgroup.Group)
	serial := make(chan barrier.WaitResult, 2)
	for range 2 {
		g.Go(func() error {
			res, err := barrier.Wait(context.Background(), b)
			if err != nil {
				return err
			}
			serial <- res

			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(serial)

	results := make([]barrier.WaitResult, 0, 2)
	for res := range serial {
		results = append(results, res)
	}
	assert.Equal(t, 1, countSerial(results))

	require.NoError(t, barrier.Destroy(b))
}
