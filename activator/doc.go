// Package activator implements the admission gate deciding whether a value
// may flow into or out of a handler.
//
// A Gate combines two ordered lists of predicates:
//
//   - mandatory checks are AND-ed; any failure rejects (hard exclusions such
//     as "ignore the bot's own messages")
//   - optional checks are OR-ed; any success suffices (inclusive triggers such
//     as "mentioned by name", "on topic" or "random chance")
//
// An empty list is vacuously satisfied. All checks for one decision run
// concurrently and the evaluation short-circuits as soon as the outcome is
// decided. A predicate that errors or panics counts as false and is logged;
// sibling checks are unaffected.
//
// Gates attached permanently to a handler and ad-hoc gates built with Once
// share the same type. Copy produces an independent gate.
package activator
