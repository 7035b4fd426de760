package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// BucketStore stores media files in a Bucket under the media id
type BucketStore struct {
	bucket Bucket
}

// NewBucketStore creates a media store backed by bucket
func NewBucketStore(bucket Bucket) *BucketStore {
	return &BucketStore{bucket: bucket}
}

// CopyIn downloads the media's original file to dst
func (s *BucketStore) CopyIn(ctx context.Context, media pipeline.Media, dst string) error {
	key := OriginalKey(media)
	r, err := s.bucket.GetReader(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to open original %s: %w", key, err)
	}
	defer r.Close()

	return writeLocal(dst, r)
}

// CopyOut uploads src as a derived file of media
func (s *BucketStore) CopyOut(ctx context.Context, src string, media pipeline.Media, derivedName string, overwrite bool) error {
	key := DerivedKey(media, derivedName)

	if !overwrite {
		exists, err := s.bucket.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check derived file %s: %w", key, err)
		}
		if exists {
			return nil
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open derived file: %w", err)
	}
	defer f.Close()

	if err := s.bucket.Put(ctx, key, f); err != nil {
		return fmt.Errorf("failed to store derived file %s: %w", key, err)
	}
	return nil
}

// RemoveAll deletes the original and every derived file of media
func (s *BucketStore) RemoveAll(ctx context.Context, media pipeline.Media) error {
	if media.ID == "" {
		return fmt.Errorf("%w: media id is required", ErrInvalidKey)
	}
	if err := s.bucket.DeletePrefix(ctx, MediaPrefix(media)); err != nil {
		return fmt.Errorf("failed to remove media %s: %w", media.ID, err)
	}
	return nil
}

func writeLocal(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return f.Close()
}
