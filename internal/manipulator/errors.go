package manipulator

import "errors"

var (
	// ErrNoDispatcher is returned when queued conversions exist but no job
	// dispatcher is configured
	ErrNoDispatcher = errors.New("no job dispatcher configured for queued conversions")
)
