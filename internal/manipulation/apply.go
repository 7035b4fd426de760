package manipulation

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decoding
)

// DefaultFormat is used when the input format cannot be encoded and no
// format step was requested
const DefaultFormat = "jpg"

// DefaultQuality is the JPEG quality used when no quality step is present
const DefaultQuality = 90

var anchors = map[string]imaging.Anchor{
	"":             imaging.Center,
	"center":       imaging.Center,
	"top-left":     imaging.TopLeft,
	"top":          imaging.Top,
	"top-right":    imaging.TopRight,
	"left":         imaging.Left,
	"right":        imaging.Right,
	"bottom-left":  imaging.BottomLeft,
	"bottom":       imaging.Bottom,
	"bottom-right": imaging.BottomRight,
}

type state struct {
	img     image.Image
	format  string
	quality int
}

// Apply loads the image at path, runs the pipeline in order and saves the
// result. The returned path carries the output format's extension; when it
// differs from the input path the input file is removed.
func Apply(path string, p Pipeline) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}

	st := &state{
		img:     img,
		format:  normalizeFormat(filepath.Ext(path)),
		quality: DefaultQuality,
	}

	for _, m := range p {
		if err := st.apply(m); err != nil {
			return "", err
		}
	}

	if _, err := imaging.FormatFromExtension(st.format); err != nil {
		st.format = DefaultFormat
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + "." + st.format
	if err := imaging.Save(st.img, out, imaging.JPEGQuality(st.quality)); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	if out != path {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to remove input image: %w", err)
		}
	}

	return out, nil
}

// Validate checks every step of the pipeline without touching any file
func Validate(p Pipeline) error {
	st := &state{img: image.NewNRGBA(image.Rect(0, 0, 4, 4)), quality: DefaultQuality}
	for _, m := range p {
		if err := st.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *state) apply(m Manipulation) error {
	switch m.Operation {
	case OpWidth:
		w, err := m.positiveIntParam("width")
		if err != nil {
			return err
		}
		s.img = imaging.Resize(s.img, w, 0, imaging.Lanczos)

	case OpHeight:
		h, err := m.positiveIntParam("height")
		if err != nil {
			return err
		}
		s.img = imaging.Resize(s.img, 0, h, imaging.Lanczos)

	case OpFit:
		w, err := m.positiveIntParam("width")
		if err != nil {
			return err
		}
		h, err := m.positiveIntParam("height")
		if err != nil {
			return err
		}
		switch strings.ToLower(m.Param("method")) {
		case "", FitContain, FitMax:
			s.img = imaging.Fit(s.img, w, h, imaging.Lanczos)
		case FitFill, FitCrop:
			s.img = imaging.Fill(s.img, w, h, imaging.Center, imaging.Lanczos)
		case FitStretch:
			s.img = imaging.Resize(s.img, w, h, imaging.Lanczos)
		default:
			return fmt.Errorf("%w: unknown fit method %q", ErrInvalidManipulation, m.Param("method"))
		}

	case OpCrop:
		w, err := m.positiveIntParam("width")
		if err != nil {
			return err
		}
		h, err := m.positiveIntParam("height")
		if err != nil {
			return err
		}
		anchor, ok := anchors[strings.ToLower(m.Param("position"))]
		if !ok {
			return fmt.Errorf("%w: unknown crop position %q", ErrInvalidManipulation, m.Param("position"))
		}
		s.img = imaging.CropAnchor(s.img, w, h, anchor)

	case OpBlur:
		amount, err := m.floatParam("amount", 1)
		if err != nil {
			return err
		}
		s.img = imaging.Blur(s.img, amount)

	case OpSharpen:
		amount, err := m.floatParam("amount", 1)
		if err != nil {
			return err
		}
		s.img = imaging.Sharpen(s.img, amount)

	case OpBrightness:
		amount, err := m.floatParam("amount", 0)
		if err != nil {
			return err
		}
		s.img = imaging.AdjustBrightness(s.img, amount)

	case OpContrast:
		amount, err := m.floatParam("amount", 0)
		if err != nil {
			return err
		}
		s.img = imaging.AdjustContrast(s.img, amount)

	case OpGamma:
		amount, err := m.floatParam("amount", 1)
		if err != nil {
			return err
		}
		if amount <= 0 {
			return fmt.Errorf("%w: gamma must be positive", ErrInvalidManipulation)
		}
		s.img = imaging.AdjustGamma(s.img, amount)

	case OpGreyscale:
		s.img = imaging.Grayscale(s.img)

	case OpInvert:
		s.img = imaging.Invert(s.img)

	case OpRotate:
		degrees, err := m.floatParam("degrees", 0)
		if err != nil {
			return err
		}
		s.img = rotate(s.img, degrees)

	case OpFlip:
		switch strings.ToLower(m.Param("direction")) {
		case "h", "horizontal":
			s.img = imaging.FlipH(s.img)
		case "v", "vertical":
			s.img = imaging.FlipV(s.img)
		case "both":
			s.img = imaging.FlipV(imaging.FlipH(s.img))
		default:
			return fmt.Errorf("%w: unknown flip direction %q", ErrInvalidManipulation, m.Param("direction"))
		}

	case OpFormat:
		format := normalizeFormat(m.Param("format"))
		if _, err := imaging.FormatFromExtension(format); err != nil {
			return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
		}
		s.format = format

	case OpQuality:
		q, err := m.intParam("quality")
		if err != nil {
			return err
		}
		if q < 1 || q > 100 {
			return fmt.Errorf("%w: quality must be within 1..100, got %d", ErrInvalidManipulation, q)
		}
		s.quality = q

	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidManipulation, m.Operation)
	}
	return nil
}

// rotate turns the image counter-clockwise by the given degrees
func rotate(img image.Image, degrees float64) image.Image {
	normalized := math.Mod(degrees, 360)
	if normalized < 0 {
		normalized += 360
	}
	switch normalized {
	case 0:
		return img
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	}
	return imaging.Rotate(img, normalized, color.Transparent)
}
