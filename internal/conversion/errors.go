package conversion

import "errors"

var (
	// ErrConversionNotFound is returned when a named conversion is not part of a collection
	ErrConversionNotFound = errors.New("conversion not found")

	// ErrDuplicateConversion is returned when a conversion name is reused within a collection
	ErrDuplicateConversion = errors.New("duplicate conversion")

	// ErrInvalidConversion is returned for conversions that cannot be registered
	ErrInvalidConversion = errors.New("invalid conversion")
)
