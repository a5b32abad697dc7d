package render

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/placeholder"
)

type column struct {
	key    string
	header string
	class  string
}

// itemColumns is the fixed column order; Element.Columns may switch any off.
var itemColumns = []column{
	{"sno", "#", "col-sno"},
	{"description", "Description", "col-description"},
	{"quantity", "Qty", "col-num"},
	{"unit", "Unit", "col-unit"},
	{"rate", "Rate", "col-num"},
	{"amount", "Amount", "col-num"},
}

func (r *renderer) itemsTable(sb *strings.Builder, b ItemsTableBlock) {
	cols := make([]column, 0, len(itemColumns))
	for _, c := range itemColumns {
		if show, ok := b.Columns[c.key]; ok && !show {
			continue
		}
		cols = append(cols, c)
	}

	if b.Title != "" {
		fmt.Fprintf(sb, `<h3>%s</h3>`, r.text(b.Title))
	}
	class := "items-table"
	if enabled(b.Striped) {
		class += " striped"
	}
	fmt.Fprintf(sb, `<table class="%s"><thead><tr>`, class)
	for _, c := range cols {
		fmt.Fprintf(sb, `<th class="%s">%s</th>`, c.class, html.EscapeString(c.header))
	}
	sb.WriteString(`</tr></thead><tbody>`)

	if len(r.rc.Items) == 0 {
		span := len(cols)
		if span == 0 {
			span = 1
		}
		fmt.Fprintf(sb, `<tr class="no-items"><td colspan="%d">No items</td></tr>`, span)
	}
	for i, item := range r.rc.Items {
		rowClass := "row-odd"
		if i%2 == 1 {
			rowClass = "row-even"
		}
		fmt.Fprintf(sb, `<tr class="%s">`, rowClass)
		for _, c := range cols {
			fmt.Fprintf(sb, `<td class="%s">%s</td>`, c.class, html.EscapeString(r.cell(c.key, i, item)))
		}
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table>`)
}

func (r *renderer) cell(key string, index int, item map[string]interface{}) string {
	switch key {
	case "sno":
		return strconv.Itoa(index + 1)
	case "quantity":
		if n, ok := number(item["quantity"]); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return placeholder.Stringify(item["quantity"])
	case "rate":
		return r.money(item["rate"])
	case "amount":
		if v, ok := item["amount"]; ok && v != nil {
			return r.money(v)
		}
		q, okQ := number(item["quantity"])
		rate, okR := number(item["rate"])
		if okQ && okR {
			return r.money(q * rate)
		}
		return ""
	default:
		return placeholder.Stringify(item[key])
	}
}

// money formats numeric values with the context currency symbol. Strings
// that are not numbers are assumed preformatted and pass through.
func (r *renderer) money(v interface{}) string {
	n, ok := number(v)
	if !ok {
		return placeholder.Stringify(v)
	}
	return FormatMoney(n, r.rc.CurrencySymbol)
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// FormatMoney renders n with two decimals and digit grouping. The rupee
// symbol switches to lakh/crore grouping (12,34,567.00).
func FormatMoney(n float64, symbol string) string {
	neg := n < 0
	n = math.Abs(n)
	s := strconv.FormatFloat(n, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var grouped string
	if symbol == "₹" {
		grouped = groupIndian(intPart)
	} else {
		grouped = groupThousands(intPart)
	}
	out := symbol + grouped + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return strings.Join(append([]string{s}, parts...), ",")
}

func groupIndian(s string) string {
	if len(s) <= 3 {
		return s
	}
	last := s[len(s)-3:]
	s = s[:len(s)-3]
	var parts []string
	for len(s) > 2 {
		parts = append([]string{s[len(s)-2:]}, parts...)
		s = s[:len(s)-2]
	}
	if s != "" {
		parts = append([]string{s}, parts...)
	}
	return strings.Join(parts, ",") + "," + last
}
