// Package core provides the foundational domain types shared by every layer
// of agentswarm:
//
//   - Tags, stage indexes and Selectors (what a handler input listens to)
//   - Destinations (where an emitted value is published)
//   - Envelopes and Emissions (values travelling over the bus)
//   - Identity keys used to correlate a payload across numbered stages
//   - Accumulator, an explicitly owned lock guarded counter for handlers
//   - Sentinel errors checked with errors.Is
//
// The package has no dependencies on the engine so that collectors, gates and
// handler runtimes can be tested in isolation.
package core
