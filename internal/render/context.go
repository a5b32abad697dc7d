package render

// RenderContext is the per-request data bag substituted into a template.
type RenderContext struct {
	Company   map[string]interface{}
	Client    map[string]interface{}
	Quotation map[string]interface{}
	Items     []map[string]interface{}
	Totals    map[string]interface{}
	// CurrencySymbol prefixes computed money values in the items table.
	CurrencySymbol string
}

// Data flattens the context into the namespace map used by placeholders.
// "customer" is kept as an alias of "client" for older templates.
func (rc RenderContext) Data() map[string]interface{} {
	items := make([]interface{}, len(rc.Items))
	for i, it := range rc.Items {
		items[i] = it
	}
	return map[string]interface{}{
		"company":   orEmpty(rc.Company),
		"client":    orEmpty(rc.Client),
		"customer":  orEmpty(rc.Client),
		"quotation": orEmpty(rc.Quotation),
		"items":     items,
		"totals":    orEmpty(rc.Totals),
	}
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
