package workflows

import "errors"

var (
	// ErrRuntimeNotInitialized is returned when jobs are submitted without a DBOS runtime
	ErrRuntimeNotInitialized = errors.New("DBOS runtime not initialized")

	// ErrNoHandler is returned when a job is executed before a handler is set
	ErrNoHandler = errors.New("no job handler registered")

	// ErrUnknownQueue is returned when a job names a queue the runtime does not know
	ErrUnknownQueue = errors.New("unknown workflow queue")
)
