package pdf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
)

// ErrEngineDisabled is reported in Result.Error when PDF output is switched off.
var ErrEngineDisabled = errors.New("pdf engine disabled")

// Result is always usable: when the engine fails Data holds the HTML instead.
type Result struct {
	Data        []byte
	ContentType string
	Fallback    bool
	Filename    string
	Error       string
}

// Generator wraps an Engine with timeout handling and the HTML fallback.
type Generator struct {
	engine Engine
}

// NewGenerator returns a generator; a nil engine always falls back to HTML.
func NewGenerator(engine Engine) *Generator {
	return &Generator{engine: engine}
}

// Enabled reports whether a PDF engine is configured.
func (g *Generator) Enabled() bool {
	return g != nil && g.engine != nil
}

// Generate never returns an error; failures are folded into a fallback Result.
func (g *Generator) Generate(ctx context.Context, doc string, opts Options) Result {
	opts = opts.withDefaults()
	log := logger.Component("pdf").WithFields(logrus.Fields{"format": opts.Format, "filename": opts.Filename})

	if !g.Enabled() {
		return fallback(doc, opts, ErrEngineDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	data, err := g.print(ctx, doc, opts)
	if err == nil && len(data) == 0 {
		err = errors.New("engine returned an empty document")
	}
	if err != nil {
		log.WithError(err).Warn("pdf generation failed, serving html")
		return fallback(doc, opts, err)
	}
	log.WithField("bytes", len(data)).Debug("pdf generated")
	return Result{
		Data:        data,
		ContentType: "application/pdf",
		Filename:    opts.Filename + ".pdf",
	}
}

func (g *Generator) print(ctx context.Context, doc string, opts Options) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("engine panic: %v", p)
		}
	}()
	return g.engine.PrintPDF(ctx, withWatermark(doc, opts.Watermark), opts)
}

func fallback(doc string, opts Options, cause error) Result {
	return Result{
		Data:        []byte(withWatermark(doc, opts.Watermark)),
		ContentType: "text/html",
		Fallback:    true,
		Filename:    opts.Filename + ".html",
		Error:       cause.Error(),
	}
}

const watermarkCSS = `<style>.watermark { position: fixed; top: 45%; left: 0; right: 0; text-align: center; font-size: 96px; color: rgba(0, 0, 0, 0.08); transform: rotate(-30deg); z-index: 0; pointer-events: none; }</style>`

// withWatermark injects a fixed, rotated watermark into the document.
func withWatermark(doc, text string) string {
	if strings.TrimSpace(text) == "" {
		return doc
	}
	mark := `<div class="watermark">` + html.EscapeString(text) + `</div>`
	if i := strings.Index(doc, "</head>"); i >= 0 {
		doc = doc[:i] + watermarkCSS + "\n" + doc[i:]
	} else {
		doc = watermarkCSS + doc
	}
	if i := strings.LastIndex(doc, "</body>"); i >= 0 {
		return doc[:i] + mark + "\n" + doc[i:]
	}
	return doc + mark
}
