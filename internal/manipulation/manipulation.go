// Package manipulation applies ordered image operations to a file on disk.
package manipulation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Operation names understood by Apply
const (
	OpWidth      = "width"
	OpHeight     = "height"
	OpFit        = "fit"
	OpCrop       = "crop"
	OpBlur       = "blur"
	OpSharpen    = "sharpen"
	OpBrightness = "brightness"
	OpContrast   = "contrast"
	OpGamma      = "gamma"
	OpGreyscale  = "greyscale"
	OpInvert     = "invert"
	OpRotate     = "rotate"
	OpFlip       = "flip"
	OpFormat     = "format"
	OpQuality    = "quality"
)

// Fit methods
const (
	FitContain = "contain"
	FitMax     = "max"
	FitFill    = "fill"
	FitStretch = "stretch"
	FitCrop    = "crop"
)

// Manipulation is a single named operation with its parameters
type Manipulation struct {
	Operation  string
	Parameters map[string]string
}

// New creates a manipulation from alternating key/value parameter pairs
func New(op string, kv ...string) Manipulation {
	params := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i]] = kv[i+1]
	}
	return Manipulation{Operation: op, Parameters: params}
}

// Param returns a parameter value or the empty string
func (m Manipulation) Param(name string) string {
	return m.Parameters[name]
}

func (m Manipulation) intParam(name string) (int, error) {
	raw := strings.TrimSpace(m.Parameters[name])
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s=%q is not an integer", ErrInvalidManipulation, m.Operation, name, raw)
	}
	return v, nil
}

func (m Manipulation) positiveIntParam(name string) (int, error) {
	v, err := m.intParam(name)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s.%s must be positive, got %d", ErrInvalidManipulation, m.Operation, name, v)
	}
	return v, nil
}

func (m Manipulation) floatParam(name string, def float64) (float64, error) {
	raw := strings.TrimSpace(m.Parameters[name])
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s=%q is not a number", ErrInvalidManipulation, m.Operation, name, raw)
	}
	return v, nil
}

// Spec converts the manipulation to its wire form
func (m Manipulation) Spec() pipeline.ManipulationSpec {
	params := make(map[string]string, len(m.Parameters))
	for k, v := range m.Parameters {
		params[k] = v
	}
	return pipeline.ManipulationSpec{Operation: m.Operation, Parameters: params}
}

// FromSpec converts a wire manipulation
func FromSpec(s pipeline.ManipulationSpec) Manipulation {
	params := make(map[string]string, len(s.Parameters))
	for k, v := range s.Parameters {
		params[k] = v
	}
	return Manipulation{Operation: strings.ToLower(strings.TrimSpace(s.Operation)), Parameters: params}
}

// Pipeline is an ordered list of manipulations
type Pipeline []Manipulation

// Clone returns a copy that can be appended to without sharing storage
func (p Pipeline) Clone() Pipeline {
	out := make(Pipeline, len(p))
	copy(out, p)
	return out
}

// Format returns the output format requested by the last format step, if any
func (p Pipeline) Format() string {
	format := ""
	for _, m := range p {
		if m.Operation == OpFormat {
			format = normalizeFormat(m.Param("format"))
		}
	}
	return format
}

// Specs converts the pipeline to its wire form
func (p Pipeline) Specs() []pipeline.ManipulationSpec {
	out := make([]pipeline.ManipulationSpec, 0, len(p))
	for _, m := range p {
		out = append(out, m.Spec())
	}
	return out
}

// PipelineFromSpecs converts wire manipulations to a pipeline
func PipelineFromSpecs(specs []pipeline.ManipulationSpec) Pipeline {
	out := make(Pipeline, 0, len(specs))
	for _, s := range specs {
		out = append(out, FromSpec(s))
	}
	return out
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}
