package render

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

// Text decodes any JSON scalar into a string so editors can store 20 or "20".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*t = Text(strconv.FormatBool(v))
		return nil
	}
	if string(b) == "null" {
		*t = ""
		return nil
	}
	return fmt.Errorf("expected a scalar, got %s", string(b))
}

// Block is a parsed element: one concrete type per Kind.
type Block interface {
	Kind() Kind
}

type HeaderBlock struct {
	Title    Text `json:"title"`
	Subtitle Text `json:"subtitle"`
	Logo     Text `json:"logo"`
}

type CompanyInfoBlock struct {
	Title       Text  `json:"title"`
	ShowAddress *bool `json:"showAddress"`
	ShowContact *bool `json:"showContact"`
	ShowGST     *bool `json:"showGST"`
}

type ClientInfoBlock struct {
	Title Text `json:"title"`
}

type QuotationInfoBlock struct {
	Title  Text `json:"title"`
	Fields []struct {
		Label Text `json:"label"`
		Value Text `json:"value"`
	} `json:"fields"`
}

type ItemsTableBlock struct {
	Title   Text            `json:"title"`
	Columns map[string]bool `json:"-"`
	Striped *bool           `json:"striped"`
}

type TotalsRow struct {
	Label Text `json:"label"`
	Value Text `json:"value"`
	Bold  bool `json:"bold"`
}

type TotalsBlock struct {
	Rows []TotalsRow `json:"rows"`
	// Named keys (subtotal, discount, tax, total) are accepted as a shorthand for rows.
	Named map[string]Text `json:"-"`
}

type TermsBlock struct {
	Title Text   `json:"title"`
	Text  Text   `json:"text"`
	Items []Text `json:"items"`
}

type FooterBlock struct {
	Text Text `json:"text"`
}

type CustomTextBlock struct {
	Title Text `json:"title"`
	Text  Text `json:"text"`
	Label Text `json:"label"`
	Value Text `json:"value"`
}

type ImageBlock struct {
	Src    Text `json:"src"`
	Alt    Text `json:"alt"`
	Width  Text `json:"width"`
	Height Text `json:"height"`
}

type DividerBlock struct {
	Color     Text `json:"color"`
	Thickness Text `json:"thickness"`
}

type SpacerBlock struct {
	Height Text `json:"height"`
}

type SignatureBlock struct {
	Label Text `json:"label"`
	Name  Text `json:"name"`
	Title Text `json:"title"`
}

// UnknownBlock keeps the raw element so the diagnostic fragment can echo it.
type UnknownBlock struct {
	RawType string
	Content map[string]interface{}
}

func (HeaderBlock) Kind() Kind        { return KindHeader }
func (CompanyInfoBlock) Kind() Kind   { return KindCompanyInfo }
func (ClientInfoBlock) Kind() Kind    { return KindClientInfo }
func (QuotationInfoBlock) Kind() Kind { return KindQuotationInfo }
func (ItemsTableBlock) Kind() Kind    { return KindItemsTable }
func (TotalsBlock) Kind() Kind        { return KindTotals }
func (TermsBlock) Kind() Kind         { return KindTerms }
func (FooterBlock) Kind() Kind        { return KindFooter }
func (CustomTextBlock) Kind() Kind    { return KindCustomText }
func (ImageBlock) Kind() Kind         { return KindImage }
func (DividerBlock) Kind() Kind       { return KindDivider }
func (SpacerBlock) Kind() Kind        { return KindSpacer }
func (SignatureBlock) Kind() Kind     { return KindSignature }
func (UnknownBlock) Kind() Kind       { return KindUnknown }

var totalsKeyOrder = []string{"subtotal", "discount", "tax", "total"}

// Parse decodes an element's content into the block for its kind.
func Parse(el models.Element) (Block, error) {
	switch kind := ParseKind(el.Type); kind {
	case KindHeader:
		var b HeaderBlock
		return b, decode(el.Content, &b)
	case KindCompanyInfo:
		var b CompanyInfoBlock
		return b, decode(el.Content, &b)
	case KindClientInfo:
		var b ClientInfoBlock
		return b, decode(el.Content, &b)
	case KindQuotationInfo:
		var b QuotationInfoBlock
		return b, decode(el.Content, &b)
	case KindItemsTable:
		var b ItemsTableBlock
		err := decode(el.Content, &b)
		b.Columns = el.Columns
		return b, err
	case KindTotals:
		var b TotalsBlock
		if err := decode(el.Content, &b); err != nil {
			return b, err
		}
		for _, key := range totalsKeyOrder {
			if raw, ok := el.Content[key]; ok {
				if b.Named == nil {
					b.Named = map[string]Text{}
				}
				var v Text
				if err := decode(raw, &v); err != nil {
					return b, fmt.Errorf("totals.%s: %w", key, err)
				}
				b.Named[key] = v
			}
		}
		return b, nil
	case KindTerms:
		var b TermsBlock
		return b, decode(el.Content, &b)
	case KindFooter:
		var b FooterBlock
		return b, decode(el.Content, &b)
	case KindCustomText:
		var b CustomTextBlock
		return b, decode(el.Content, &b)
	case KindImage:
		var b ImageBlock
		if err := decode(el.Content, &b); err != nil {
			return b, err
		}
		if b.Src == "" {
			return b, fmt.Errorf("image element has no src")
		}
		return b, nil
	case KindDivider:
		var b DividerBlock
		return b, decode(el.Content, &b)
	case KindSpacer:
		var b SpacerBlock
		return b, decode(el.Content, &b)
	case KindSignature:
		var b SignatureBlock
		return b, decode(el.Content, &b)
	case KindUnknown:
		return UnknownBlock{RawType: el.Type, Content: el.Content}, nil
	default:
		return nil, fmt.Errorf("unhandled element kind %d", kind)
	}
}

func decode(src interface{}, dst interface{}) error {
	if src == nil {
		return nil
	}
	if m, ok := src.(map[string]interface{}); ok && len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	return nil
}
