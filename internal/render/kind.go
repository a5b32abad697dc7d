package render

import "strings"

// Kind is the closed set of element types a template may contain.
type Kind int

const (
	KindUnknown Kind = iota
	KindHeader
	KindCompanyInfo
	KindClientInfo
	KindQuotationInfo
	KindItemsTable
	KindTotals
	KindTerms
	KindFooter
	KindCustomText
	KindImage
	KindDivider
	KindSpacer
	KindSignature
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindHeader:        "header",
	KindCompanyInfo:   "company_info",
	KindClientInfo:    "client_info",
	KindQuotationInfo: "quotation_info",
	KindItemsTable:    "items_table",
	KindTotals:        "totals",
	KindTerms:         "terms",
	KindFooter:        "footer",
	KindCustomText:    "custom_text",
	KindImage:         "image",
	KindDivider:       "divider",
	KindSpacer:        "spacer",
	KindSignature:     "signature",
}

// legacy element type names still found in stored templates.
var aliases = map[string]Kind{
	"table":    KindItemsTable,
	"section":  KindCustomText,
	"field":    KindCustomText,
	"text":     KindCustomText,
	"customer": KindClientInfo,
	"total":    KindTotals,
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames)+len(aliases))
	for k, n := range kindNames {
		if k != KindUnknown {
			m[n] = k
		}
	}
	for n, k := range aliases {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps canonical names and legacy aliases to a Kind. Matching is
// case-insensitive; anything else is KindUnknown.
func ParseKind(raw string) Kind {
	if k, ok := byName[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return k
	}
	return KindUnknown
}

// KnownTypes returns every accepted type name including aliases.
func KnownTypes() []string {
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	return out
}
