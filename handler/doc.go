// Package handler provides the uniform invocation contract for swarm
// handlers.
//
// A handler body comes in one of four shapes, fixed at construction time:
//
//   - OneShot: computes and returns at most one emission.
//   - Stream: emits any number of values while it runs.
//   - Blocking: synchronous work (CPU bound or blocking I/O) that must not run
//     on the dispatcher goroutine; it is offloaded to a bounded Pool.
//   - Source: has no inputs and produces values until its context is
//     cancelled.
//
// Every shape is driven through the same Invoke method which returns a lazily
// filled emission channel and an error channel carrying at most one terminal
// error. Panics inside a body are recovered and reported as errors.
package handler
