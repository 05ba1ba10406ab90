// Package barrier provides a reusable counting barrier: a rendezvous point
// where a fixed number of goroutines block until all have arrived, after
// which every participant is released together and the barrier resets for
// the next generation.
//
// Exactly one participant per generation observes the [SerialThread] result,
// which grants permission to run a once-per-generation action; the remaining
// participants observe [Released].
//
// Handles may be declared statically and initialized on first use:
//
//	var b = barrier.Barrier{Count: 3}
//
// or constructed explicitly with [Init]. Barrier state lives in a [Registry];
// the package-level functions operate on [DefaultRegistry].
package barrier
