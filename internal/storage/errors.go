package storage

import "errors"

var (
	// ErrNotFound is returned when a stored object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrUnknownDisk is returned when a media item names a disk that is not configured
	ErrUnknownDisk = errors.New("unknown disk")

	// ErrInvalidKey is returned when a key escapes the storage root
	ErrInvalidKey = errors.New("invalid key")
)
