// Package storage moves media originals into a workspace and derived files
// back out to the disk a media item lives on.
package storage

import (
	"context"
	"io"
	"path"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// MediaStore copies originals in and derived files out
type MediaStore interface {
	// CopyIn writes the original file of media to dst
	CopyIn(ctx context.Context, media pipeline.Media, dst string) error

	// CopyOut stores the local file src as the derived file derivedName of media.
	// An existing derived file is replaced only when overwrite is true.
	CopyOut(ctx context.Context, src string, media pipeline.Media, derivedName string, overwrite bool) error
}

// Remover deletes every stored file of a media item
type Remover interface {
	RemoveAll(ctx context.Context, media pipeline.Media) error
}

// Reader provides read access to stored objects
type Reader interface {
	// GetReader returns a reader for the object at the given key
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists at the given key
	Exists(ctx context.Context, key string) (bool, error)
}

// Writer stores objects
type Writer interface {
	Put(ctx context.Context, key string, r io.Reader) error
}

// Bucket is a flat key/object store
type Bucket interface {
	Reader
	Writer

	// DeletePrefix removes every object whose key starts with prefix
	DeletePrefix(ctx context.Context, prefix string) error
}

// OriginalKey returns the object key of the media's original file
func OriginalKey(media pipeline.Media) string {
	return path.Join(media.ID, path.Base(media.FileName))
}

// DerivedKey returns the object key of a derived file
func DerivedKey(media pipeline.Media, derivedName string) string {
	return path.Join(media.ID, "conversions", path.Clean("/" + derivedName)[1:])
}

// MediaPrefix returns the key prefix shared by every file of the media
func MediaPrefix(media pipeline.Media) string {
	return media.ID + "/"
}
