package library

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Repository persists media records
type Repository interface {
	Get(ctx context.Context, id string) (pipeline.Media, error)
	ListCollection(ctx context.Context, owner pipeline.Owner, collection string) ([]pipeline.Media, error)
	Save(ctx context.Context, media pipeline.Media) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is a Repository kept in memory
type MemoryRepository struct {
	mu    sync.RWMutex
	media map[string]pipeline.Media
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{media: make(map[string]pipeline.Media)}
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (pipeline.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.media[id]
	if !ok {
		return pipeline.Media{}, fmt.Errorf("%w: %s", ErrMediaNotFound, id)
	}
	return m, nil
}

// ListCollection returns the owner's media in the collection ordered by Order
func (r *MemoryRepository) ListCollection(ctx context.Context, owner pipeline.Owner, collection string) ([]pipeline.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []pipeline.Media
	for _, m := range r.media {
		if m.Owner == owner && m.CollectionName == collection {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Save(ctx context.Context, media pipeline.Media) error {
	if media.ID == "" {
		return fmt.Errorf("media id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[media.ID] = media
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.media, id)
	return nil
}
