package responsive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-content-conversions/internal/storage"
	"github.com/tendant/simple-content-conversions/internal/workspace"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Directory is the derived-file directory holding responsive variants
const Directory = "responsive-images"

// OriginalLabel names variants generated from the original file
const OriginalLabel = "original"

// Image is one stored responsive variant
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Generator resizes a source image to every width of its schedule and stores
// the results next to the media's derived files
type Generator struct {
	store   storage.MediaStore
	tempDir string
	logger  *slog.Logger
}

// NewGenerator creates a responsive image generator
func NewGenerator(store storage.MediaStore, tempDir string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, tempDir: tempDir, logger: logger}
}

// FileName returns the stored name of a variant:
// responsive-images/{base}___{label}_{width}_{height}.{ext}
func FileName(media pipeline.Media, label string, width, height int, ext string) string {
	base := strings.TrimSuffix(filepath.Base(media.FileName), filepath.Ext(media.FileName))
	if label == "" {
		label = OriginalLabel
	}
	return fmt.Sprintf("%s/%s___%s_%d_%d.%s", Directory, base, label, width, height, ext)
}

// Generate stores a resized copy of sourcePath for every width in its schedule.
// label is the conversion the source was produced by, or "" for the original.
func (g *Generator) Generate(ctx context.Context, media pipeline.Media, sourcePath, label string) ([]Image, error) {
	widths, err := CalculateWidths(sourcePath)
	if err != nil {
		return nil, err
	}
	if len(widths) == 0 {
		return nil, nil
	}

	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(sourcePath), "."))
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		ext = "jpg"
	}

	ws, err := workspace.Acquire(g.tempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Delete(); err != nil {
			g.logger.Warn("failed to delete workspace", "media_id", media.ID, "error", err)
		}
	}()

	images := make([]Image, 0, len(widths))
	for _, w := range widths {
		if err := ctx.Err(); err != nil {
			return images, err
		}

		resized := imaging.Resize(src, w, 0, imaging.Lanczos)
		h := resized.Bounds().Dy()

		path := ws.RandomName(ext)
		if err := imaging.Save(resized, path); err != nil {
			return images, fmt.Errorf("failed to save responsive image: %w", err)
		}

		name := FileName(media, label, w, h, ext)
		if err := g.store.CopyOut(ctx, path, media, name, true); err != nil {
			return images, fmt.Errorf("failed to store responsive image %s: %w", name, err)
		}

		images = append(images, Image{Width: w, Height: h, Name: name})
	}

	g.logger.Debug("responsive images generated", "media_id", media.ID, "label", label, "count", len(images))
	return images, nil
}
