package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// DerivationType tags derived content uploaded by ContentStore
const DerivationType = "conversion"

// ContentStore stores media through the simple-content service. The media id
// is the content id and every derived file becomes derived content whose
// variant is the derived file name.
type ContentStore struct {
	service simplecontent.Service
}

// NewContentStore creates a media store using simple-content service
func NewContentStore(service simplecontent.Service) *ContentStore {
	return &ContentStore{
		service: service,
	}
}

// CopyIn downloads the content to dst
func (cs *ContentStore) CopyIn(ctx context.Context, media pipeline.Media, dst string) error {
	id, err := uuid.Parse(media.ID)
	if err != nil {
		return fmt.Errorf("invalid content ID: %w", err)
	}

	reader, err := cs.service.DownloadContent(ctx, id)
	if errors.Is(err, simplecontent.ErrContentNotFound) {
		return fmt.Errorf("%w: content %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to download content: %w", err)
	}
	defer reader.Close()

	return writeLocal(dst, reader)
}

// CopyOut uploads src as derived content of the media. With overwrite every
// live derived content of the same variant is deleted first, otherwise an
// existing variant is kept and the upload skipped.
func (cs *ContentStore) CopyOut(ctx context.Context, src string, media pipeline.Media, derivedName string, overwrite bool) error {
	parentID, err := uuid.Parse(media.ID)
	if err != nil {
		return fmt.Errorf("invalid content ID: %w", err)
	}

	existing, err := cs.variants(ctx, parentID, derivedName)
	if err != nil {
		return err
	}
	if len(existing) > 0 && !overwrite {
		return nil
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open derived file: %w", err)
	}
	defer f.Close()

	for _, d := range existing {
		if err := cs.service.DeleteContent(ctx, d.ContentID); err != nil {
			return fmt.Errorf("failed to replace derived content %s: %w", d.ContentID, err)
		}
	}

	_, err = cs.service.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
		ParentID:       parentID,
		DerivationType: DerivationType,
		Variant:        derivedName,
		Reader:         f,
		FileName:       path.Base(derivedName),
		Tags:           []string{DerivationType, derivedName},
	})
	if err != nil {
		return fmt.Errorf("failed to upload derived content: %w", err)
	}

	return nil
}

// RemoveAll deletes every derived content of the media, then the media itself
func (cs *ContentStore) RemoveAll(ctx context.Context, media pipeline.Media) error {
	parentID, err := uuid.Parse(media.ID)
	if err != nil {
		return fmt.Errorf("invalid content ID: %w", err)
	}

	derived, err := cs.variants(ctx, parentID, "")
	if err != nil {
		return err
	}
	for _, d := range derived {
		if err := cs.service.DeleteContent(ctx, d.ContentID); err != nil {
			return fmt.Errorf("failed to delete derived content %s: %w", d.ContentID, err)
		}
	}

	if err := cs.service.DeleteContent(ctx, parentID); err != nil && !errors.Is(err, simplecontent.ErrContentNotFound) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// DerivedVariant returns the live derived content stored under variant
func (cs *ContentStore) DerivedVariant(ctx context.Context, media pipeline.Media, variant string) ([]*simplecontent.DerivedContent, error) {
	parentID, err := uuid.Parse(media.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid content ID: %w", err)
	}
	return cs.variants(ctx, parentID, variant)
}

// variants lists the live derived content of parentID. Deleted content can
// still be listed by the repository, so each entry is checked. An empty
// variant matches every entry.
func (cs *ContentStore) variants(ctx context.Context, parentID uuid.UUID, variant string) ([]*simplecontent.DerivedContent, error) {
	derived, err := cs.service.ListDerivedContent(ctx,
		simplecontent.WithParentID(parentID),
		simplecontent.WithDerivationType(DerivationType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list derived content: %w", err)
	}

	var live []*simplecontent.DerivedContent
	for _, d := range derived {
		if variant != "" && d.Variant != variant {
			continue
		}
		if _, err := cs.service.GetContent(ctx, d.ContentID); err != nil {
			if errors.Is(err, simplecontent.ErrContentNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get derived content %s: %w", d.ContentID, err)
		}
		live = append(live, d)
	}
	return live, nil
}
