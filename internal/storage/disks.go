package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Disks routes each media item to the store named by its disk. Media without
// a disk use the default disk.
type Disks struct {
	stores      map[string]MediaStore
	defaultDisk string
}

// NewDisks creates an empty disk router
func NewDisks(defaultDisk string) *Disks {
	return &Disks{
		stores:      make(map[string]MediaStore),
		defaultDisk: defaultDisk,
	}
}

// Register adds a named store
func (d *Disks) Register(name string, store MediaStore) {
	d.stores[name] = store
}

// Names returns the registered disk names in sorted order
func (d *Disks) Names() []string {
	names := make([]string, 0, len(d.stores))
	for name := range d.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store returns the store for media
func (d *Disks) Store(media pipeline.Media) (MediaStore, error) {
	name := media.Disk
	if name == "" {
		name = d.defaultDisk
	}
	store, ok := d.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, name)
	}
	return store, nil
}

func (d *Disks) CopyIn(ctx context.Context, media pipeline.Media, dst string) error {
	store, err := d.Store(media)
	if err != nil {
		return err
	}
	return store.CopyIn(ctx, media, dst)
}

func (d *Disks) CopyOut(ctx context.Context, src string, media pipeline.Media, derivedName string, overwrite bool) error {
	store, err := d.Store(media)
	if err != nil {
		return err
	}
	return store.CopyOut(ctx, src, media, derivedName, overwrite)
}

// RemoveAll removes the media's files when its store supports removal
func (d *Disks) RemoveAll(ctx context.Context, media pipeline.Media) error {
	store, err := d.Store(media)
	if err != nil {
		return err
	}
	remover, ok := store.(Remover)
	if !ok {
		return nil
	}
	return remover.RemoveAll(ctx, media)
}
