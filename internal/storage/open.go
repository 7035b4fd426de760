package storage

import (
	"context"
	"errors"

	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Disk names registered by OpenDisks
const (
	DiskLocal   = "local"
	DiskS3      = "s3"
	DiskGCS     = "gcs"
	DiskContent = "content"
)

// DiskConfig selects the disks opened by OpenDisks. Disks whose settings are
// empty are skipped.
type DiskConfig struct {
	Default            string
	LocalDir           string
	S3                 S3Config
	GCSBucket          string
	GCSCredentialsFile string
	Content            simplecontent.Service
}

// OpenDisks builds a disk router from cfg. The returned close function
// releases client connections.
func OpenDisks(ctx context.Context, cfg DiskConfig) (*Disks, func() error, error) {
	if cfg.Default == "" {
		cfg.Default = DiskLocal
	}
	disks := NewDisks(cfg.Default)
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.LocalDir != "" {
		fs, err := NewFilesystemStorage(cfg.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		disks.Register(DiskLocal, NewBucketStore(fs))
	}

	if cfg.S3.Bucket != "" {
		b, err := NewS3Bucket(cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		disks.Register(DiskS3, NewBucketStore(b))
	}

	if cfg.GCSBucket != "" {
		b, err := NewGCSBucket(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, b.Close)
		disks.Register(DiskGCS, NewBucketStore(b))
	}

	if cfg.Content != nil {
		disks.Register(DiskContent, NewContentStore(cfg.Content))
	}

	if _, err := disks.Store(pipeline.Media{}); err != nil {
		closeAll()
		return nil, nil, err
	}

	return disks, closeAll, nil
}
