package conversion

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/tendant/simple-content-conversions/internal/manipulation"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

type declarations struct {
	Conversions []declaration `toml:"conversion"`
}

type declaration struct {
	Name             string                      `toml:"name"`
	Collections      []string                    `toml:"collections"`
	Queued           *bool                       `toml:"queued"`
	Format           string                      `toml:"format"`
	PDFPage          int                         `toml:"pdf_page"`
	VideoFrameSecond *float64                    `toml:"video_frame_second"`
	Responsive       bool                        `toml:"responsive"`
	Manipulations    []pipeline.ManipulationSpec `toml:"manipulation"`
}

// LoadFile reads conversion declarations from a TOML file
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversions file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from TOML conversion declarations:
//
//	[[conversion]]
//	name = "thumb"
//	collections = ["images"]
//	queued = false
//	format = "jpg"
//
//	[[conversion.manipulation]]
//	operation = "fit"
//	parameters = { method = "contain", width = "200", height = "200" }
func Parse(data []byte) (*Registry, error) {
	var decl declarations
	if err := toml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse conversions: %w", err)
	}

	r := &Registry{}
	for _, d := range decl.Conversions {
		c := New(d.Name)
		for _, m := range d.Manipulations {
			c.manipulations = append(c.manipulations, manipulation.FromSpec(m))
		}
		if d.Format != "" {
			c.Format(d.Format)
		}
		if d.Queued != nil && !*d.Queued {
			c.NonQueued()
		}
		if d.Responsive {
			c.WithResponsiveImages()
		}
		if len(d.Collections) > 0 {
			c.PerformOnCollections(d.Collections...)
		}
		c.PDFPage(d.PDFPage)
		if d.VideoFrameSecond != nil {
			c.ExtractVideoFrameAtSecond(*d.VideoFrameSecond)
		}
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
