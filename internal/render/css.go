package render

import (
	"fmt"
	"strings"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/placeholder"
)

// Theme is the resolved set of style variables used to build document CSS.
type Theme struct {
	PrimaryColor   string
	SecondaryColor string
	FontFamily     string
	FontSize       string
}

var themes = map[string]Theme{
	"classic": {PrimaryColor: "#1f3a5f", SecondaryColor: "#f2f4f7", FontFamily: "Georgia, 'Times New Roman', serif", FontSize: "12px"},
	"modern":  {PrimaryColor: "#0f766e", SecondaryColor: "#ecfdf5", FontFamily: "'Helvetica Neue', Arial, sans-serif", FontSize: "12px"},
	"minimal": {PrimaryColor: "#111111", SecondaryColor: "#fafafa", FontFamily: "Arial, sans-serif", FontSize: "11px"},
}

// ResolveTheme picks the named theme (classic when unknown) and applies any
// overrides from the template styles map.
func ResolveTheme(name string, styles map[string]interface{}) Theme {
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		t = themes["classic"]
	}
	override := func(key string, dst *string) {
		if v, ok := styles[key]; ok {
			if s := placeholder.Stringify(v); s != "" && !strings.ContainsAny(s, "<>{};") {
				*dst = s
			}
		}
	}
	override("primaryColor", &t.PrimaryColor)
	override("secondaryColor", &t.SecondaryColor)
	override("fontFamily", &t.FontFamily)
	override("fontSize", &t.FontSize)
	t.FontSize = cssLength(t.FontSize)
	return t
}

// CSS renders the stylesheet for a theme, including print rules.
func (t Theme) CSS() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "body { font-family: %s; font-size: %s; color: #222; margin: 0; padding: 24px; }\n", t.FontFamily, t.FontSize)
	sb.WriteString(".element { margin-bottom: 16px; }\n")
	fmt.Fprintf(&sb, ".doc-title { color: %s; margin: 0 0 4px; }\n", t.PrimaryColor)
	sb.WriteString(".header-logo { max-height: 64px; float: right; }\n")
	fmt.Fprintf(&sb, "h3 { color: %s; margin: 0 0 8px; }\n", t.PrimaryColor)
	sb.WriteString("p { margin: 2px 0; }\n")
	sb.WriteString("table { width: 100%; border-collapse: collapse; }\n")
	fmt.Fprintf(&sb, ".items-table th { background: %s; color: #fff; text-align: left; padding: 6px; }\n", t.PrimaryColor)
	sb.WriteString(".items-table td { padding: 6px; border-bottom: 1px solid #e5e5e5; }\n")
	fmt.Fprintf(&sb, ".items-table.striped tr.row-even td { background: %s; }\n", t.SecondaryColor)
	sb.WriteString(".col-num { text-align: right; }\n")
	sb.WriteString(".no-items td { text-align: center; color: #888; }\n")
	sb.WriteString(".info-table th { text-align: left; padding: 2px 8px 2px 0; width: 40%; }\n")
	sb.WriteString(".totals-table { width: 50%; margin-left: auto; }\n")
	sb.WriteString(".totals-table th { text-align: left; padding: 4px; }\n")
	sb.WriteString(".totals-table td { text-align: right; padding: 4px; }\n")
	fmt.Fprintf(&sb, ".totals-grand th, .totals-grand td { font-weight: bold; border-top: 2px solid %s; }\n", t.PrimaryColor)
	sb.WriteString(".signature { margin-top: 40px; text-align: right; }\n")
	sb.WriteString(".signature-line { border-top: 1px solid #333; width: 200px; margin: 40px 0 4px auto; }\n")
	sb.WriteString(".element-unknown, .element-error { border: 1px dashed #c0392b; color: #c0392b; padding: 8px; }\n")
	fmt.Fprintf(&sb, ".document-footer { margin-top: 24px; padding-top: 8px; border-top: 1px solid %s; font-size: 0.85em; color: #666; }\n", t.SecondaryColor)
	sb.WriteString("@page { size: A4; margin: 15mm; }\n")
	sb.WriteString("@media print {\n")
	sb.WriteString("  body { padding: 0; }\n")
	sb.WriteString("  thead { display: table-header-group; }\n")
	sb.WriteString("  tr, .element { page-break-inside: avoid; }\n")
	sb.WriteString("  .element-unknown, .element-error { display: none; }\n")
	sb.WriteString("}\n")
	return sb.String()
}
