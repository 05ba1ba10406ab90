// Package sema provides a counting semaphore with context-aware blocking
// waits and atomic bulk release.
//
// This package implements the release-semaphore side of the barrier
// protocol: permits are consumed one at a time by blocked waiters and can be
// granted in bulk so that an entire generation of waiters is released in a
// single step.
package sema
