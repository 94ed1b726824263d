// Package testutil contains builders used across tests to construct
// conversations without repeating message bookkeeping. Not intended for
// production usage.
package testutil
