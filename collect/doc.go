// Package collect implements the per-handler join state.
//
// A handler declares one or more input slots. Each slot accepts payloads of a
// given type published to a matching destination (untagged, a tag or a
// stage), optionally filtered by a guard predicate. A Collector buffers the
// accepted envelopes per slot and fires the handler once every slot holds a
// value that belongs together:
//
//   - stage slots correlate by payload identity: the same value (pointer
//     identity for reference types, equality for comparable values) must be
//     present in every stage slot;
//   - all other slots pair first-come first-served.
//
// Firing removes exactly the consumed values, atomically with respect to
// concurrent offers. Buffers are bounded; the oldest entry of a full slot is
// evicted and reported through OnEvict. An optional TTL expires entries that
// never found a partner.
package collect
