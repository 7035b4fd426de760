package library

import "errors"

var (
	// ErrMediaNotFound is returned when no media item has the given id
	ErrMediaNotFound = errors.New("media not found")

	// ErrMediaCannotBeUpdated is returned when an update names media outside
	// the requested collection
	ErrMediaCannotBeUpdated = errors.New("media cannot be updated")

	// ErrMediaCannotBeDeleted is returned when the media is not owned by the
	// requesting owner
	ErrMediaCannotBeDeleted = errors.New("media cannot be deleted")
)
