// Package conversion declares named manipulation pipelines and resolves the
// ones that apply to a media item's collection.
package conversion

import (
	"strconv"
	"strings"

	"github.com/tendant/simple-content-conversions/internal/manipulation"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Conversion is a named, ordered manipulation pipeline with a queued or
// synchronous disposition
type Conversion struct {
	name             string
	manipulations    manipulation.Pipeline
	queued           bool
	collections      []string
	pdfPage          int
	videoFrameSecond float64
	responsive       bool
}

// New creates a conversion that is queued by default and applies to every collection
func New(name string) *Conversion {
	return &Conversion{
		name:             name,
		queued:           true,
		pdfPage:          1,
		videoFrameSecond: 1,
	}
}

// Name returns the conversion name
func (c *Conversion) Name() string { return c.name }

// Manipulations returns a copy of the manipulation pipeline
func (c *Conversion) Manipulations() manipulation.Pipeline { return c.manipulations.Clone() }

// IsQueued reports whether the conversion runs as deferred work
func (c *Conversion) IsQueued() bool { return c.queued }

// PDFPageNumber returns the page rendered for PDF sources
func (c *Conversion) PDFPageNumber() int { return c.pdfPage }

// VideoFrameSecond returns the offset of the frame extracted from video sources
func (c *Conversion) VideoFrameSecond() float64 { return c.videoFrameSecond }

// GeneratesResponsiveImages reports whether a responsive width set is
// generated from the conversion result
func (c *Conversion) GeneratesResponsiveImages() bool { return c.responsive }

// Collections returns the collection names the conversion is bound to.
// An empty result means every collection.
func (c *Conversion) Collections() []string {
	out := make([]string, len(c.collections))
	copy(out, c.collections)
	return out
}

// TargetFormat returns the format requested by the pipeline, or ""
func (c *Conversion) TargetFormat() string { return c.manipulations.Format() }

// ResultExtension returns the extension of files produced from an input with
// the given extension
func (c *Conversion) ResultExtension(inputExtension string) string {
	if format := c.TargetFormat(); format != "" {
		return format
	}
	return strings.ToLower(strings.TrimPrefix(inputExtension, "."))
}

// ShouldBePerformedOn reports whether the conversion applies to the collection
func (c *Conversion) ShouldBePerformedOn(collection string) bool {
	if len(c.collections) == 0 {
		return true
	}
	for _, name := range c.collections {
		if name == pipeline.AllCollections || name == collection {
			return true
		}
	}
	return false
}

// Manipulate appends an arbitrary manipulation step
func (c *Conversion) Manipulate(op string, kv ...string) *Conversion {
	c.manipulations = append(c.manipulations, manipulation.New(op, kv...))
	return c
}

// Width resizes to the given width, keeping the aspect ratio
func (c *Conversion) Width(w int) *Conversion {
	return c.Manipulate(manipulation.OpWidth, "width", strconv.Itoa(w))
}

// Height resizes to the given height, keeping the aspect ratio
func (c *Conversion) Height(h int) *Conversion {
	return c.Manipulate(manipulation.OpHeight, "height", strconv.Itoa(h))
}

// Fit resizes into a w x h box using the given fit method
func (c *Conversion) Fit(method string, w, h int) *Conversion {
	return c.Manipulate(manipulation.OpFit, "method", method, "width", strconv.Itoa(w), "height", strconv.Itoa(h))
}

// Crop cuts a w x h region anchored at position
func (c *Conversion) Crop(position string, w, h int) *Conversion {
	return c.Manipulate(manipulation.OpCrop, "position", position, "width", strconv.Itoa(w), "height", strconv.Itoa(h))
}

// Format sets the output format
func (c *Conversion) Format(format string) *Conversion {
	return c.Manipulate(manipulation.OpFormat, "format", format)
}

// Quality sets the JPEG output quality
func (c *Conversion) Quality(q int) *Conversion {
	return c.Manipulate(manipulation.OpQuality, "quality", strconv.Itoa(q))
}

// Greyscale removes colour
func (c *Conversion) Greyscale() *Conversion {
	return c.Manipulate(manipulation.OpGreyscale)
}

// Blur applies a gaussian blur
func (c *Conversion) Blur(amount float64) *Conversion {
	return c.Manipulate(manipulation.OpBlur, "amount", strconv.FormatFloat(amount, 'f', -1, 64))
}

// Sharpen sharpens the image
func (c *Conversion) Sharpen(amount float64) *Conversion {
	return c.Manipulate(manipulation.OpSharpen, "amount", strconv.FormatFloat(amount, 'f', -1, 64))
}

// Queued marks the conversion as deferred work
func (c *Conversion) Queued() *Conversion {
	c.queued = true
	return c
}

// NonQueued marks the conversion as synchronous
func (c *Conversion) NonQueued() *Conversion {
	c.queued = false
	return c
}

// PerformOnCollections binds the conversion to the given collections
func (c *Conversion) PerformOnCollections(names ...string) *Conversion {
	c.collections = append(c.collections[:0:0], names...)
	return c
}

// PDFPage selects the page rendered for PDF sources
func (c *Conversion) PDFPage(page int) *Conversion {
	if page > 0 {
		c.pdfPage = page
	}
	return c
}

// ExtractVideoFrameAtSecond selects the frame extracted from video sources
func (c *Conversion) ExtractVideoFrameAtSecond(sec float64) *Conversion {
	if sec >= 0 {
		c.videoFrameSecond = sec
	}
	return c
}

// WithResponsiveImages generates responsive variants of the conversion result
func (c *Conversion) WithResponsiveImages() *Conversion {
	c.responsive = true
	return c
}

// withExtra returns a copy with additional manipulations appended
func (c *Conversion) withExtra(extra manipulation.Pipeline) *Conversion {
	cp := *c
	cp.manipulations = append(c.manipulations.Clone(), extra...)
	cp.collections = c.Collections()
	return &cp
}

// Spec converts the conversion to its wire form
func (c *Conversion) Spec() pipeline.ConversionSpec {
	second := c.videoFrameSecond
	return pipeline.ConversionSpec{
		Name:             c.name,
		Manipulations:    c.manipulations.Specs(),
		Queued:           c.queued,
		Collections:      c.Collections(),
		PDFPage:          c.pdfPage,
		VideoFrameSecond: &second,
		Responsive:       c.responsive,
	}
}

// FromSpec rebuilds a conversion from its wire form
func FromSpec(s pipeline.ConversionSpec) *Conversion {
	c := New(s.Name)
	c.manipulations = manipulation.PipelineFromSpecs(s.Manipulations)
	c.queued = s.Queued
	c.collections = append([]string(nil), s.Collections...)
	c.responsive = s.Responsive
	c.PDFPage(s.PDFPage)
	if s.VideoFrameSecond != nil {
		c.ExtractVideoFrameAtSecond(*s.VideoFrameSecond)
	}
	return c
}
