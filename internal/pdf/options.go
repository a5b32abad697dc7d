package pdf

import (
	"strings"
	"time"
)

// DefaultTimeout bounds a whole PDF generation when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ImageTimeout is how long the engine waits for any single image to load.
const ImageTimeout = 5 * time.Second

// Options mirrors the print dialog: paper, margins (mm) and decoration.
type Options struct {
	Format          string        `json:"format"`      // A4, Letter, Legal
	Orientation     string        `json:"orientation"` // portrait, landscape
	MarginTop       float64       `json:"margin_top"`
	MarginRight     float64       `json:"margin_right"`
	MarginBottom    float64       `json:"margin_bottom"`
	MarginLeft      float64       `json:"margin_left"`
	Scale           float64       `json:"scale"`
	PrintBackground bool          `json:"print_background"`
	HeaderTemplate  string        `json:"header_template,omitempty"`
	FooterTemplate  string        `json:"footer_template,omitempty"`
	Watermark       string        `json:"watermark,omitempty"`
	Timeout         time.Duration `json:"-"`

	// Filename is the suggested download name without extension.
	Filename string `json:"filename,omitempty"`
}

// DefaultOptions is A4 portrait with 15mm margins.
func DefaultOptions() Options {
	return Options{
		Format:          "A4",
		Orientation:     "portrait",
		MarginTop:       15,
		MarginRight:     15,
		MarginBottom:    15,
		MarginLeft:      15,
		Scale:           1,
		PrintBackground: true,
		Timeout:         DefaultTimeout,
	}
}

// withDefaults fills zero values.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Format == "" {
		o.Format = d.Format
	}
	if o.Orientation == "" {
		o.Orientation = d.Orientation
	}
	if o.Scale <= 0 {
		o.Scale = d.Scale
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.Filename == "" {
		o.Filename = "quotation"
	}
	return o
}

// PaperSize returns width and height in inches, swapped for landscape.
func (o Options) PaperSize() (width, height float64) {
	switch strings.ToLower(o.Format) {
	case "letter":
		width, height = 8.5, 11
	case "legal":
		width, height = 8.5, 14
	default:
		width, height = 8.27, 11.69
	}
	if o.Landscape() {
		width, height = height, width
	}
	return width, height
}

func (o Options) Landscape() bool {
	return strings.EqualFold(o.Orientation, "landscape")
}

func mmToInches(mm float64) float64 { return mm / 25.4 }
