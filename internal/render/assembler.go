package render

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/metrics"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

// DefaultValidityDays is used when Options.ValidityDays is zero.
const DefaultValidityDays = 30

const footerDateLayout = "02 Jan 2006"

// Options controls document assembly.
type Options struct {
	// Title overrides the <title>; defaults to the template name.
	Title        string
	ValidityDays int
	// Now is the clock used for the generated footer.
	Now func() time.Time
}

// ElementError records an element replaced by an error marker.
type ElementError struct {
	Index int
	Type  string
	Err   string
}

// Document is an assembled HTML quotation.
type Document struct {
	HTML        string
	GeneratedAt time.Time
	ValidUntil  time.Time
	Errors      []ElementError
}

// Assemble renders every element of tpl and wraps them in a complete HTML
// document. A failing element never fails the document.
func Assemble(tpl models.QuotationTemplate, rc RenderContext, opts Options) Document {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	days := opts.ValidityDays
	if days <= 0 {
		days = DefaultValidityDays
	}
	title := opts.Title
	if title == "" {
		title = tpl.Name
	}

	doc := Document{GeneratedAt: now()}
	doc.ValidUntil = doc.GeneratedAt.AddDate(0, 0, days)

	r := newRenderer(rc)
	var body strings.Builder
	for i, el := range orderElements(tpl.Elements) {
		frag, err := r.safeElement(el)
		if err != nil {
			doc.Errors = append(doc.Errors, ElementError{Index: i, Type: el.Type, Err: err.Error()})
			metrics.IncElementError(ParseKind(el.Type).String())
			logger.Component("render").WithFields(logrus.Fields{
				"template_id":  tpl.ID,
				"element_id":   el.ID,
				"element_type": el.Type,
			}).WithError(err).Warn("element render failed")
			fmt.Fprintf(&body, `<div class="element-error" data-type="%s">Error rendering element</div>`+"\n", html.EscapeString(el.Type))
			continue
		}
		body.WriteString(frag)
	}

	fmt.Fprintf(&body, `<div class="document-footer"><p>Generated on %s</p><p>Valid until %s</p></div>`+"\n",
		doc.GeneratedAt.Format(footerDateLayout), doc.ValidUntil.Format(footerDateLayout))

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("<style>\n")
	sb.WriteString(ResolveTheme(tpl.Theme, tpl.Styles).CSS())
	sb.WriteString("</style>\n</head>\n<body>\n")
	sb.WriteString(body.String())
	sb.WriteString("</body>\n</html>\n")
	doc.HTML = sb.String()
	return doc
}

func (r *renderer) safeElement(el models.Element) (frag string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.element(el)
}

// orderElements sorts by Order when any element declares one. Elements
// without an order keep their relative position after the ordered ones.
func orderElements(in []models.Element) []models.Element {
	out := make([]models.Element, len(in))
	copy(out, in)
	anyOrdered := false
	for _, el := range out {
		if el.Order != nil {
			anyOrdered = true
			break
		}
	}
	if !anyOrdered {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Order, out[j].Order
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return out
}
