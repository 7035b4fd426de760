package generator

// Tools names the external binaries used by the default drivers
type Tools struct {
	PDFToPPM    string
	RSVGConvert string
	FFmpeg      string
}

// Selector picks the first capable driver in a fixed priority order
type Selector struct {
	drivers []Driver
}

// NewSelector creates a selector over the drivers in the given order
func NewSelector(drivers ...Driver) *Selector {
	return &Selector{drivers: append([]Driver(nil), drivers...)}
}

// DefaultSelector returns the image, pdf, svg, video driver chain
func DefaultSelector(tools Tools) *Selector {
	return NewSelector(
		NewImageDriver(),
		NewPDFDriver(tools.PDFToPPM),
		NewSVGDriver(tools.RSVGConvert),
		NewVideoDriver(tools.FFmpeg),
	)
}

// Select returns the first driver able to convert the file at path
func (s *Selector) Select(path string) (Driver, bool) {
	for _, d := range s.drivers {
		if d.CanConvert(path) {
			return d, true
		}
	}
	return nil, false
}

// Drivers returns the drivers in priority order
func (s *Selector) Drivers() []Driver {
	return append([]Driver(nil), s.drivers...)
}

// Status reports a driver's capability for diagnostics
type Status struct {
	Kind                  Kind     `json:"kind"`
	RequirementsInstalled bool     `json:"requirements_installed"`
	Extensions            []string `json:"extensions"`
	Mimetypes             []string `json:"mimetypes"`
}

// Status returns the live status of every driver in priority order
func (s *Selector) Status() []Status {
	out := make([]Status, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, Status{
			Kind:                  d.Kind(),
			RequirementsInstalled: d.RequirementsInstalled(),
			Extensions:            d.SupportedExtensions(),
			Mimetypes:             d.SupportedMimetypes(),
		})
	}
	return out
}
