package generator

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tendant/simple-content-conversions/internal/conversion"
)

// ImageDriver handles raster images decoded natively
type ImageDriver struct{}

// NewImageDriver creates the raster image driver
func NewImageDriver() *ImageDriver { return &ImageDriver{} }

func (d *ImageDriver) Kind() Kind { return KindImage }

func (d *ImageDriver) SupportedExtensions() []string {
	return []string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "webp"}
}

func (d *ImageDriver) SupportedMimetypes() []string {
	return []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp"}
}

func (d *ImageDriver) RequirementsInstalled() bool { return true }

func (d *ImageDriver) CanConvert(path string) bool { return canConvert(d, path) }

// Convert returns the source unchanged
func (d *ImageDriver) Convert(ctx context.Context, path string, conv *conversion.Conversion) (string, error) {
	return path, nil
}

// PDFDriver renders a PDF page with poppler's pdftoppm
type PDFDriver struct {
	Binary     string
	Resolution int
	run        commandRunner
}

// NewPDFDriver creates a PDF driver using the given pdftoppm binary
func NewPDFDriver(binary string) *PDFDriver {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PDFDriver{Binary: binary, Resolution: 150, run: execRunner}
}

func (d *PDFDriver) Kind() Kind { return KindPDF }

func (d *PDFDriver) SupportedExtensions() []string { return []string{"pdf"} }

func (d *PDFDriver) SupportedMimetypes() []string { return []string{"application/pdf"} }

func (d *PDFDriver) RequirementsInstalled() bool { return binaryInstalled(d.Binary) }

func (d *PDFDriver) CanConvert(path string) bool { return canConvert(d, path) }

// Convert renders the conversion's PDF page to JPEG
func (d *PDFDriver) Convert(ctx context.Context, path string, conv *conversion.Conversion) (string, error) {
	page := strconv.Itoa(conv.PDFPageNumber())
	prefix := strings.TrimSuffix(siblingPath(path, "-page"+page, "jpg"), ".jpg")

	out, err := d.run(ctx, d.Binary,
		"-jpeg",
		"-f", page,
		"-l", page,
		"-singlefile",
		"-r", strconv.Itoa(d.Resolution),
		path,
		prefix,
	)
	if err != nil {
		return "", fmt.Errorf("pdftoppm failed: %v, output: %s", err, strings.TrimSpace(string(out)))
	}

	result := prefix + ".jpg"
	if err := requireOutput(result); err != nil {
		return "", err
	}
	return result, nil
}

// SVGDriver rasterises vector images with rsvg-convert
type SVGDriver struct {
	Binary string
	run    commandRunner
}

// NewSVGDriver creates an SVG driver using the given rsvg-convert binary
func NewSVGDriver(binary string) *SVGDriver {
	if binary == "" {
		binary = "rsvg-convert"
	}
	return &SVGDriver{Binary: binary, run: execRunner}
}

func (d *SVGDriver) Kind() Kind { return KindSVG }

func (d *SVGDriver) SupportedExtensions() []string { return []string{"svg"} }

func (d *SVGDriver) SupportedMimetypes() []string { return []string{"image/svg+xml"} }

func (d *SVGDriver) RequirementsInstalled() bool { return binaryInstalled(d.Binary) }

func (d *SVGDriver) CanConvert(path string) bool { return canConvert(d, path) }

// Convert renders the SVG to PNG
func (d *SVGDriver) Convert(ctx context.Context, path string, conv *conversion.Conversion) (string, error) {
	result := siblingPath(path, "", "png")

	out, err := d.run(ctx, d.Binary, "-f", "png", "-o", result, path)
	if err != nil {
		return "", fmt.Errorf("rsvg-convert failed: %v, output: %s", err, strings.TrimSpace(string(out)))
	}
	if err := requireOutput(result); err != nil {
		return "", err
	}
	return result, nil
}

// VideoDriver extracts a still frame with ffmpeg
type VideoDriver struct {
	Binary string
	run    commandRunner
}

// NewVideoDriver creates a video driver using the given ffmpeg binary
func NewVideoDriver(binary string) *VideoDriver {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &VideoDriver{Binary: binary, run: execRunner}
}

func (d *VideoDriver) Kind() Kind { return KindVideo }

func (d *VideoDriver) SupportedExtensions() []string {
	return []string{"webm", "mov", "mp4", "mkv", "avi", "m4v", "mpeg", "mpg", "3gp", "flv", "wmv"}
}

func (d *VideoDriver) SupportedMimetypes() []string {
	return []string{"video/webm", "video/mpeg", "video/mp4", "video/quicktime", "video/x-matroska", "video/x-msvideo"}
}

func (d *VideoDriver) RequirementsInstalled() bool { return binaryInstalled(d.Binary) }

func (d *VideoDriver) CanConvert(path string) bool { return canConvert(d, path) }

// Convert extracts the frame at the conversion's offset to JPEG. Clips shorter
// than the offset fall back to the first frame.
func (d *VideoDriver) Convert(ctx context.Context, path string, conv *conversion.Conversion) (string, error) {
	result := siblingPath(path, "-frame", "jpg")
	seek := strconv.FormatFloat(conv.VideoFrameSecond(), 'f', -1, 64)

	out, err := d.run(ctx, d.Binary, "-y", "-ss", seek, "-i", path, "-frames:v", "1", result)
	if err == nil {
		err = requireOutput(result)
	}
	if err != nil {
		out, err = d.run(ctx, d.Binary, "-y", "-i", path, "-frames:v", "1", result)
		if err != nil {
			return "", fmt.Errorf("ffmpeg failed: %v, output: %s", err, strings.TrimSpace(string(out)))
		}
		if err := requireOutput(result); err != nil {
			return "", err
		}
	}
	return result, nil
}

func requireOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("driver produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("driver produced an empty file: %s", path)
	}
	return nil
}
