package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/placeholder"
)

// RenderElement produces the HTML fragment for one element. Hidden elements
// produce an empty string. It holds no state between calls.
func RenderElement(el models.Element, rc RenderContext) (string, error) {
	return newRenderer(rc).element(el)
}

type renderer struct {
	rc   RenderContext
	data map[string]interface{}
}

func newRenderer(rc RenderContext) *renderer {
	return &renderer{rc: rc, data: rc.Data()}
}

func (r *renderer) element(el models.Element) (string, error) {
	if !el.IsVisible() {
		return "", nil
	}
	block, err := Parse(el)
	if err != nil {
		return "", fmt.Errorf("%s element: %w", el.Type, err)
	}

	var body strings.Builder
	switch b := block.(type) {
	case HeaderBlock:
		r.header(&body, b)
	case CompanyInfoBlock:
		r.companyInfo(&body, b)
	case ClientInfoBlock:
		r.clientInfo(&body, b)
	case QuotationInfoBlock:
		r.quotationInfo(&body, b)
	case ItemsTableBlock:
		r.itemsTable(&body, b)
	case TotalsBlock:
		r.totals(&body, b)
	case TermsBlock:
		r.terms(&body, b)
	case FooterBlock:
		r.footer(&body, b)
	case CustomTextBlock:
		r.customText(&body, b)
	case ImageBlock:
		if err := r.image(&body, b); err != nil {
			return "", err
		}
	case DividerBlock:
		r.divider(&body, b)
	case SpacerBlock:
		r.spacer(&body, b)
	case SignatureBlock:
		r.signature(&body, b)
	case UnknownBlock:
		return r.unknown(b), nil
	default:
		return "", fmt.Errorf("no renderer for %T", block)
	}

	return wrap(block.Kind(), el, body.String()), nil
}

func wrap(kind Kind, el models.Element, inner string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="element element-`)
	sb.WriteString(kind.String())
	sb.WriteString(`"`)
	if el.ID != "" {
		sb.WriteString(` data-element-id="`)
		sb.WriteString(html.EscapeString(el.ID))
		sb.WriteString(`"`)
	}
	if css := styleAttr(el.Style); css != "" {
		sb.WriteString(` style="`)
		sb.WriteString(css)
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
	sb.WriteString(inner)
	sb.WriteString("</div>\n")
	return sb.String()
}

// text resolves placeholders in template text. Both the literal template
// text and the substituted values are escaped.
func (r *renderer) text(t Text) string {
	return placeholder.ResolveHTML(html.EscapeString(string(t)), r.data)
}

// field returns the escaped context value at path, or "".
func (r *renderer) field(path string) string {
	v, ok := placeholder.Lookup(r.data, path)
	if !ok {
		return ""
	}
	return html.EscapeString(placeholder.Stringify(v))
}

func (r *renderer) header(sb *strings.Builder, b HeaderBlock) {
	title := b.Title
	if title == "" {
		title = "QUOTATION"
	}
	sb.WriteString(`<div class="header">`)
	if b.Logo != "" {
		fmt.Fprintf(sb, `<img class="header-logo" src="%s" alt="logo">`, r.text(b.Logo))
	}
	fmt.Fprintf(sb, `<h1 class="doc-title">%s</h1>`, r.text(title))
	if b.Subtitle != "" {
		fmt.Fprintf(sb, `<p class="doc-subtitle">%s</p>`, r.text(b.Subtitle))
	}
	sb.WriteString(`</div>`)
}

func enabled(flag *bool) bool { return flag == nil || *flag }

func (r *renderer) companyInfo(sb *strings.Builder, b CompanyInfoBlock) {
	sb.WriteString(`<div class="company-info">`)
	if b.Title != "" {
		fmt.Fprintf(sb, `<h3>%s</h3>`, r.text(b.Title))
	}
	if name := r.field("company.name"); name != "" {
		fmt.Fprintf(sb, `<p class="company-name"><strong>%s</strong></p>`, name)
	}
	if enabled(b.ShowAddress) {
		r.line(sb, "company.address", "")
	}
	if enabled(b.ShowContact) {
		r.line(sb, "company.phone", "Phone: ")
		r.line(sb, "company.email", "Email: ")
		r.line(sb, "company.website", "")
	}
	if enabled(b.ShowGST) {
		r.line(sb, "company.gst_number", "GSTIN: ")
	}
	sb.WriteString(`</div>`)
}

func (r *renderer) line(sb *strings.Builder, path, prefix string) {
	if v := r.field(path); v != "" {
		fmt.Fprintf(sb, `<p>%s%s</p>`, html.EscapeString(prefix), v)
	}
}

func (r *renderer) clientInfo(sb *strings.Builder, b ClientInfoBlock) {
	title := b.Title
	if title == "" {
		title = "Bill To"
	}
	sb.WriteString(`<div class="client-info">`)
	fmt.Fprintf(sb, `<h3>%s</h3>`, r.text(title))
	if name := r.field("client.name"); name != "" {
		fmt.Fprintf(sb, `<p class="client-name"><strong>%s</strong></p>`, name)
	}
	r.line(sb, "client.company", "")
	r.line(sb, "client.address", "")
	r.line(sb, "client.phone", "Phone: ")
	r.line(sb, "client.email", "Email: ")
	r.line(sb, "client.gst_number", "GSTIN: ")
	sb.WriteString(`</div>`)
}

var defaultQuotationFields = []struct{ label, path string }{
	{"Quotation No.", "quotation.number"},
	{"Date", "quotation.date"},
	{"Valid Until", "quotation.valid_until"},
	{"Reference", "quotation.reference"},
}

func (r *renderer) quotationInfo(sb *strings.Builder, b QuotationInfoBlock) {
	sb.WriteString(`<div class="quotation-info">`)
	if b.Title != "" {
		fmt.Fprintf(sb, `<h3>%s</h3>`, r.text(b.Title))
	}
	sb.WriteString(`<table class="info-table">`)
	if len(b.Fields) > 0 {
		for _, f := range b.Fields {
			fmt.Fprintf(sb, `<tr><th>%s</th><td>%s</td></tr>`, r.text(f.Label), r.text(f.Value))
		}
	} else {
		for _, f := range defaultQuotationFields {
			if v := r.field(f.path); v != "" {
				fmt.Fprintf(sb, `<tr><th>%s</th><td>%s</td></tr>`, f.label, v)
			}
		}
	}
	sb.WriteString(`</table></div>`)
}

func (r *renderer) totals(sb *strings.Builder, b TotalsBlock) {
	rows := b.Rows
	if len(rows) == 0 {
		for _, key := range totalsKeyOrder {
			if v, ok := b.Named[key]; ok {
				rows = append(rows, TotalsRow{Label: Text(totalsLabel(key)), Value: v, Bold: key == "total"})
			}
		}
	}
	if len(rows) == 0 {
		for _, key := range totalsKeyOrder {
			if _, ok := r.rc.Totals[key]; ok {
				rows = append(rows, TotalsRow{
					Label: Text(totalsLabel(key)),
					Value: Text("{{totals." + key + "}}"),
					Bold:  key == "total",
				})
			}
		}
	}

	sb.WriteString(`<table class="totals-table">`)
	for _, row := range rows {
		class := "totals-row"
		if row.Bold {
			class += " totals-grand"
		}
		fmt.Fprintf(sb, `<tr class="%s"><th>%s</th><td>%s</td></tr>`, class, r.text(row.Label), r.text(row.Value))
	}
	sb.WriteString(`</table>`)
}

func totalsLabel(key string) string {
	switch key {
	case "subtotal":
		return "Subtotal"
	case "discount":
		return "Discount"
	case "tax":
		return "Tax"
	case "total":
		return "Total"
	}
	return key
}

func (r *renderer) terms(sb *strings.Builder, b TermsBlock) {
	title := b.Title
	if title == "" {
		title = "Terms &amp; Conditions"
	} else {
		title = Text(r.text(title))
	}
	sb.WriteString(`<div class="terms">`)
	fmt.Fprintf(sb, `<h3>%s</h3>`, title)
	switch {
	case len(b.Items) > 0:
		sb.WriteString(`<ol>`)
		for _, it := range b.Items {
			fmt.Fprintf(sb, `<li>%s</li>`, r.text(it))
		}
		sb.WriteString(`</ol>`)
	case b.Text != "":
		paragraphs(sb, r.text(b.Text))
	default:
		paragraphs(sb, r.field("quotation.terms"))
	}
	sb.WriteString(`</div>`)
}

func paragraphs(sb *strings.Builder, s string) {
	for _, p := range strings.Split(s, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			fmt.Fprintf(sb, `<p>%s</p>`, p)
		}
	}
}

func (r *renderer) footer(sb *strings.Builder, b FooterBlock) {
	t := b.Text
	if t == "" {
		t = "Thank you for your business."
	}
	fmt.Fprintf(sb, `<div class="footer-text">%s</div>`, r.text(t))
}

func (r *renderer) customText(sb *strings.Builder, b CustomTextBlock) {
	if b.Title != "" {
		fmt.Fprintf(sb, `<h3>%s</h3>`, r.text(b.Title))
	}
	if b.Label != "" || b.Value != "" {
		fmt.Fprintf(sb, `<p class="field"><span class="field-label">%s:</span> <span class="field-value">%s</span></p>`,
			r.text(b.Label), r.text(b.Value))
	}
	if b.Text != "" {
		fmt.Fprintf(sb, `<div class="custom-text">%s</div>`, strings.ReplaceAll(r.text(b.Text), "\n", "<br>"))
	}
}

func (r *renderer) image(sb *strings.Builder, b ImageBlock) error {
	src := r.text(b.Src)
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(src)), "javascript:") {
		return fmt.Errorf("image src scheme not allowed")
	}
	var style []string
	if b.Width != "" {
		style = append(style, "width: "+cssLength(r.text(b.Width)))
	}
	if b.Height != "" {
		style = append(style, "height: "+cssLength(r.text(b.Height)))
	}
	fmt.Fprintf(sb, `<img src="%s" alt="%s"`, src, r.text(b.Alt))
	if len(style) > 0 {
		fmt.Fprintf(sb, ` style="%s"`, strings.Join(style, "; "))
	}
	sb.WriteString(">")
	return nil
}

func (r *renderer) divider(sb *strings.Builder, b DividerBlock) {
	color := string(b.Color)
	if color == "" {
		color = "#dddddd"
	}
	thickness := "1px"
	if b.Thickness != "" {
		thickness = cssLength(string(b.Thickness))
	}
	fmt.Fprintf(sb, `<hr style="border: none; border-top: %s solid %s">`, html.EscapeString(thickness), html.EscapeString(color))
}

func (r *renderer) spacer(sb *strings.Builder, b SpacerBlock) {
	h := "20px"
	if b.Height != "" {
		h = cssLength(string(b.Height))
	}
	fmt.Fprintf(sb, `<div class="spacer" style="height: %s"></div>`, html.EscapeString(h))
}

func (r *renderer) signature(sb *strings.Builder, b SignatureBlock) {
	label := b.Label
	if label == "" {
		label = "Authorized Signatory"
	}
	sb.WriteString(`<div class="signature">`)
	if company := r.field("company.name"); company != "" {
		fmt.Fprintf(sb, `<p class="signature-for">For %s</p>`, company)
	}
	sb.WriteString(`<div class="signature-line"></div>`)
	fmt.Fprintf(sb, `<p class="signature-label">%s</p>`, r.text(label))
	if b.Name != "" {
		fmt.Fprintf(sb, `<p class="signature-name">%s</p>`, r.text(b.Name))
	}
	if b.Title != "" {
		fmt.Fprintf(sb, `<p class="signature-title">%s</p>`, r.text(b.Title))
	}
	sb.WriteString(`</div>`)
}

func (r *renderer) unknown(b UnknownBlock) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	raw := "{}"
	if err := enc.Encode(b.Content); err == nil && b.Content != nil {
		raw = strings.TrimSpace(buf.String())
	}
	return fmt.Sprintf(
		`<div class="element-unknown" data-type="%s"><p class="element-unknown-label">Unsupported element: %s</p><pre>%s</pre></div>`+"\n",
		html.EscapeString(b.RawType), html.EscapeString(b.RawType), html.EscapeString(raw),
	)
}

// cssLength adds px to bare numbers.
func cssLength(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	for _, c := range v {
		if !unicode.IsDigit(c) && c != '.' {
			return v
		}
	}
	return v + "px"
}

// styleAttr turns an element style map into a deterministic inline style.
// Keys may be camelCase; values containing quotes or angle brackets are dropped.
func styleAttr(style map[string]interface{}) string {
	if len(style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		v := placeholder.Stringify(style[k])
		if v == "" || strings.ContainsAny(v, `"<>;`) || strings.ContainsAny(k, `"<>;:`) {
			continue
		}
		prop := kebab(k)
		if prop == "font-size" || prop == "margin" || prop == "padding" || strings.HasSuffix(prop, "width") || strings.HasSuffix(prop, "height") {
			v = cssLength(v)
		}
		parts = append(parts, prop+": "+v)
	}
	return html.EscapeString(strings.Join(parts, "; "))
}

func kebab(s string) string {
	var sb strings.Builder
	for i, c := range s {
		if unicode.IsUpper(c) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(c))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
