// Package xlock provides an exclusive lock with an explicit lifecycle.
//
// Unlike a bare [sync.Mutex], a Lock supports non-blocking acquisition and
// can be destroyed, after which every operation reports an error instead of
// touching freed state.
package xlock
