package manipulation

import "errors"

var (
	// ErrInvalidManipulation is returned for unknown operations or bad parameters
	ErrInvalidManipulation = errors.New("invalid manipulation")

	// ErrUnsupportedFormat is returned when an image cannot be written in the requested format
	ErrUnsupportedFormat = errors.New("unsupported output format")
)
