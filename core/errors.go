package core

import "errors"

var (
	// ErrDuplicateHandler is returned when a handler name is registered twice.
	ErrDuplicateHandler = errors.New("handler already registered")

	// ErrFrozen is returned when the handler table is mutated after start.
	ErrFrozen = errors.New("swarm already started; handler table is frozen")

	// ErrInvalidDeclaration is returned for malformed handler declarations.
	ErrInvalidDeclaration = errors.New("invalid handler declaration")

	// ErrNoStage is returned when a next-stage emission comes from a handler
	// without a stage input.
	ErrNoStage = errors.New("handler has no stage input to advance from")

	// ErrGenerationFailed is returned when every generation attempt errored.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrStopped is returned by emitters once the swarm is shutting down.
	ErrStopped = errors.New("swarm stopped")
)
