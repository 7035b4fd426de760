// Package responsive computes and generates the set of widths served for
// responsive images.
package responsive

import (
	"fmt"
	"image"
	_ "image/gif"  // GIF decoding
	_ "image/jpeg" // JPEG decoding
	_ "image/png"  // PNG decoding
	"math"
	"os"

	_ "golang.org/x/image/bmp"  // BMP decoding
	_ "golang.org/x/image/tiff" // TIFF decoding
	_ "golang.org/x/image/webp" // WebP decoding
)

// Steps is the number of widths in a schedule
const Steps = 5

// CalculateWidths returns the responsive width schedule for the image at path
func CalculateWidths(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read image dimensions: %w", err)
	}

	return CalculateWidthsFromDimensions(cfg.Width, cfg.Height, info.Size()), nil
}

// CalculateWidthsFromDimensions derives widths that approximate equal file
// size decrements from the original resolution down. Each step removes a
// fifth of the original size, so the schedule has at most Steps entries,
// strictly decreasing; widths that round to zero or repeat are dropped.
func CalculateWidthsFromDimensions(width, height int, size int64) []int {
	if width <= 0 || height <= 0 || size <= 0 {
		return nil
	}

	// With pixelPrice = size / (width * height), the width whose area costs
	// remaining bytes at the original aspect ratio reduces to
	// width * sqrt(remaining / size).
	s := float64(size)
	step := 0.2 * s

	widths := make([]int, 0, Steps)
	for i := 0; i < Steps; i++ {
		remaining := s - float64(i)*step
		if remaining <= 0 {
			break
		}

		w := int(math.Floor(float64(width) * math.Sqrt(remaining/s)))
		if w > width {
			w = width
		}
		if w <= 0 || (len(widths) > 0 && w >= widths[len(widths)-1]) {
			continue
		}
		widths = append(widths, w)
	}

	return widths
}
