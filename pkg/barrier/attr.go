package barrier

import (
	"fmt"
	"sync"

	"github.com/macropower/syncbarrier/pkg/sema"
)

// SharedMode selects whether a barrier may synchronize across process
// boundaries.
type SharedMode int

const (
	// ModePrivate restricts the barrier to the creating process.
	ModePrivate SharedMode = iota

	// ModeShared requests visibility across processes that share the
	// barrier's memory. Requires process-shared semaphore support.
	ModeShared
)

// String returns the mode name.
func (m SharedMode) String() string {
	switch m {
	case ModePrivate:
		return "private"
	case ModeShared:
		return "shared"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Attr configures barrier construction. Create instances with [NewAttr].
// Destroying an Attr never affects barriers already built from it; no
// reference is retained past [Registry.Init].
type Attr struct {
	mu        sync.Mutex
	pshared   SharedMode
	destroyed bool
}

// NewAttr creates an [Attr] with the default [ModePrivate] sharing mode.
func NewAttr() *Attr {
	return &Attr{pshared: ModePrivate}
}

// Destroy invalidates the attributes object. Further operations on it fail
// with [ErrInvalidArgument].
func (a *Attr) Destroy() error {
	if a == nil {
		return fmt.Errorf("%w: nil attributes", ErrInvalidArgument)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("%w: attributes already destroyed", ErrInvalidArgument)
	}
	a.destroyed = true

	return nil
}

// Shared returns the configured sharing mode. On a nil or destroyed Attr it
// returns [ModePrivate] together with [ErrInvalidArgument], so callers that
// ignore the error still observe the default.
func (a *Attr) Shared() (SharedMode, error) {
	if a == nil {
		return ModePrivate, fmt.Errorf("%w: nil attributes", ErrInvalidArgument)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return ModePrivate, fmt.Errorf("%w: attributes destroyed", ErrInvalidArgument)
	}

	return a.pshared, nil
}

// SetShared sets the sharing mode. Requesting [ModeShared] without
// process-shared semaphore support fails with [ErrUnsupported] and forces
// the stored mode back to [ModePrivate], so an Attr never claims a
// capability it cannot deliver.
func (a *Attr) SetShared(mode SharedMode) error {
	if a == nil {
		return fmt.Errorf("%w: nil attributes", ErrInvalidArgument)
	}
	if mode != ModePrivate && mode != ModeShared {
		return fmt.Errorf("%w: unknown sharing mode %d", ErrInvalidArgument, int(mode))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("%w: attributes destroyed", ErrInvalidArgument)
	}

	if mode == ModeShared && !sema.Supported() {
		a.pshared = ModePrivate

		return ErrUnsupported
	}
	a.pshared = mode

	return nil
}
