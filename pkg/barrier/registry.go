package barrier

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// DefaultRegistry backs the package-level [Init], [Wait], and [Destroy]
// functions.
var DefaultRegistry = NewRegistry()

// Handle state word encodings. The zero word is the auto-init sentinel so
// that a zero-value [Barrier] can be declared statically; the all-ones word
// is the destroyed sentinel. Any other word packs a slab slot (low 32 bits,
// offset by one) with its generation (high 32 bits). Slot counts stay far
// below 2^32-1, so a live word can never collide with stateDestroyed.
const (
	stateAutoInit  uint64 = 0
	stateDestroyed uint64 = math.MaxUint64
)

func packState(idx, gen uint32) uint64 {
	return uint64(gen)<<32 | uint64(idx)+1
}

func unpackState(st uint64) (idx, gen uint32) {
	return uint32(st&math.MaxUint32) - 1, uint32(st >> 32)
}

// Registry owns barrier storage and arbitrates lazy initialization. Handles
// refer to registry slots by index plus a generation tag; destroying a
// barrier bumps its slot's generation, so a stale handle is detected and
// rejected instead of reaching freed state.
//
// Most programs use the package-level functions and [DefaultRegistry];
// separate registries exist mainly for isolation in tests and for bounding
// capacity with [WithMaxBarriers].
type Registry struct {
	logger *slog.Logger

	// guard serializes resolution of auto-init sentinel handles: the
	// transitions auto-init -> live and auto-init -> destroyed. It is never
	// held while a waiter blocks.
	guard sync.Mutex

	mu    sync.Mutex // Guards slots and free.
	slots []slot
	free  []uint32

	max int
}

type slot struct {
	obj *object
	gen uint32
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithLogger sets the logger used for barrier lifecycle events.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMaxBarriers caps the number of live barriers the registry will hold.
// [Registry.Init] fails with [ErrExhausted] once the cap is reached. Zero
// means unbounded.
func WithMaxBarriers(n int) RegistryOption {
	return func(r *Registry) {
		r.max = n
	}
}

// NewRegistry creates a new [Registry].
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// allocate reserves a slot for obj and returns the packed handle state
// referring to it.
func (r *Registry) allocate(obj *object) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[idx].obj = obj

		return packState(idx, r.slots[idx].gen), nil
	}

	if r.max > 0 && len(r.slots) >= r.max {
		return 0, fmt.Errorf("%w: %d barriers live", ErrExhausted, len(r.slots))
	}

	idx := uint32(len(r.slots))
	r.slots = append(r.slots, slot{obj: obj})

	return packState(idx, 0), nil
}

// resolve returns the live object a packed handle state refers to, or
// [ErrInvalidArgument] when the reference is stale.
func (r *Registry) resolve(st uint64) (*object, error) {
	idx, gen := unpackState(st)

	r.mu.Lock()
	defer r.mu.Unlock()

	if int(idx) >= len(r.slots) || r.slots[idx].gen != gen || r.slots[idx].obj == nil {
		return nil, fmt.Errorf("%w: stale barrier handle", ErrInvalidArgument)
	}

	return r.slots[idx].obj, nil
}

// release frees the slot behind st, bumping its generation so that
// outstanding handles to it become stale.
func (r *Registry) release(st uint64) {
	idx, _ := unpackState(st)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[idx].obj = nil
	r.slots[idx].gen++
	r.free = append(r.free, idx)
}
