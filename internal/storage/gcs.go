package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBucket implements Bucket on a Google Cloud Storage bucket
type GCSBucket struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// NewGCSBucket creates a GCS bucket client. An empty credentialsFile uses the
// application default credentials.
func NewGCSBucket(ctx context.Context, bucket, credentialsFile string) (*GCSBucket, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &GCSBucket{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// Close releases the underlying client
func (b *GCSBucket) Close() error {
	return b.client.Close()
}

// GetReader returns a reader for the object at key
func (b *GCSBucket) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read object %s from bucket %s: %w", key, b.name, err)
	}
	return r, nil
}

// Exists checks the object attributes
func (b *GCSBucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get attributes of %s: %w", key, err)
	}
	return true, nil
}

// Put streams r to the object at key
func (b *GCSBucket) Put(ctx context.Context, key string, r io.Reader) error {
	wc := b.bucket.Object(key).NewWriter(ctx)

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, b.name, err)
	}

	// Close completes the upload
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish upload of %s: %w", key, err)
	}
	return nil
}

// DeletePrefix deletes every object under prefix
func (b *GCSBucket) DeletePrefix(ctx context.Context, prefix string) error {
	it := b.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		if err := b.bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("failed to delete object %s: %w", attrs.Name, err)
		}
	}
}
