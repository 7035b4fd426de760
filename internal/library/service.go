// Package library keeps the media records of an owner's collections in step
// with their stored files and derived files.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/internal/storage"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// DerivedFileCreator generates derived files for new media
type DerivedFileCreator interface {
	CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*manipulator.Report, error)
}

// UpdateItem is the new state of one media item. Nil fields are left unchanged.
type UpdateItem struct {
	ID               string         `json:"id"`
	Name             *string        `json:"name,omitempty"`
	CustomProperties map[string]any `json:"custom_properties,omitempty"`
}

// Service implements media bookkeeping operations
type Service struct {
	repo      Repository
	files     storage.Remover
	creator   DerivedFileCreator
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a media library service. files and creator may be nil.
func NewService(repo Repository, files storage.Remover, creator DerivedFileCreator, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		files:     files,
		creator:   creator,
		publisher: publisher,
		logger:    logger,
	}
}

// AddMedia stores a new media record at the end of its collection and
// creates its derived files
func (s *Service) AddMedia(ctx context.Context, media pipeline.Media) (*manipulator.Report, error) {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}

	existing, err := s.repo.ListCollection(ctx, media.Owner, media.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	media.Order = 1
	if n := len(existing); n > 0 {
		media.Order = existing[n-1].Order + 1
	}

	if err := s.repo.Save(ctx, media); err != nil {
		return nil, fmt.Errorf("failed to save media: %w", err)
	}
	s.logger.Info("media added", "media_id", media.ID, "collection", media.CollectionName)

	if s.creator == nil {
		return &manipulator.Report{Media: media}, nil
	}
	return s.creator.CreateDerivedFiles(ctx, media)
}

// UpdateMedia makes the collection contain exactly items, in order. Media of
// the collection missing from items are deleted; names and custom
// properties are updated. Every item must already belong to the collection.
func (s *Service) UpdateMedia(ctx context.Context, owner pipeline.Owner, collection string, items []UpdateItem) ([]pipeline.Media, error) {
	current := make([]pipeline.Media, 0, len(items))
	keep := make(map[string]bool, len(items))
	for _, item := range items {
		m, err := s.repo.Get(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if m.CollectionName != collection || m.Owner != owner {
			return nil, fmt.Errorf("%w: media id %s is not part of collection `%s`", ErrMediaCannotBeUpdated, m.ID, collection)
		}
		current = append(current, m)
		keep[m.ID] = true
	}

	existing, err := s.repo.ListCollection(ctx, owner, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	for _, m := range existing {
		if !keep[m.ID] {
			if err := s.remove(ctx, m); err != nil {
				return nil, err
			}
		}
	}

	updated := make([]pipeline.Media, 0, len(items))
	for i, item := range items {
		m := current[i]
		if item.Name != nil {
			m.Name = *item.Name
		}
		if item.CustomProperties != nil {
			m.CustomProperties = item.CustomProperties
		}
		m.Order = i + 1

		if err := s.repo.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to save media %s: %w", m.ID, err)
		}
		updated = append(updated, m)
	}

	return updated, nil
}

// DeleteMedia deletes a media item owned by owner together with its files
func (s *Service) DeleteMedia(ctx context.Context, owner pipeline.Owner, id string) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrMediaNotFound) {
		return err
	}
	if err != nil || m.Owner != owner {
		return fmt.Errorf("%w: media with id %s does not belong to %s with id %s", ErrMediaCannotBeDeleted, id, owner.Type, owner.ID)
	}
	return s.remove(ctx, m)
}

// ClearMediaCollection deletes every media item of the owner's collection
// and publishes collection.cleared
func (s *Service) ClearMediaCollection(ctx context.Context, owner pipeline.Owner, collection string) error {
	existing, err := s.repo.ListCollection(ctx, owner, collection)
	if err != nil {
		return fmt.Errorf("failed to list collection: %w", err)
	}

	for _, m := range existing {
		if err := s.remove(ctx, m); err != nil {
			return err
		}
	}

	s.publisher.Publish(ctx, events.CollectionCleared(owner, collection))
	s.logger.Info("media collection cleared", "collection", collection, "removed", len(existing))
	return nil
}

// remove deletes the stored files then the record and publishes media.deleted
func (s *Service) remove(ctx context.Context, m pipeline.Media) error {
	if s.files != nil {
		if err := s.files.RemoveAll(ctx, m); err != nil {
			return fmt.Errorf("failed to remove files of media %s: %w", m.ID, err)
		}
	}
	if err := s.repo.Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to delete media %s: %w", m.ID, err)
	}
	s.publisher.Publish(ctx, events.MediaDeleted(m))
	return nil
}
