// Package logging provides a minimal logging interface and adapters for agentswarm.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, collectors and retry loops use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - SwarmLogger carrying component / run / handler context plus domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	swarm := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// Arguments after the message are slog style key/value pairs.
package logging
