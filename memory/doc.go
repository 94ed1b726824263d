// Package memory stores conversation history and retrieves reply chains.
//
// The Store interface lives here together with the process-local
// InMemoryStore. A durable SQLite backend is available in memory/sqlite.
// Select an implementation at wiring time and depend on Store in your code.
package memory
