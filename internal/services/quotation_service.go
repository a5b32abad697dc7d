package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/metrics"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/pdf"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/render"
)

var ErrQuotationNotFound = errors.New("quotation not found")

const quotationDateLayout = "02 Jan 2006"

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AED": "AED ",
}

// CurrencySymbol maps an ISO code to its display prefix. Unknown codes are
// used as-is followed by a space; an empty code means INR.
func CurrencySymbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "INR"
	}
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	return code + " "
}

// QuotationService loads quotations and turns them into render contexts.
type QuotationService struct {
	db       *gorm.DB
	settings *SettingsService
}

func NewQuotationService(db *gorm.DB, settings *SettingsService) *QuotationService {
	return &QuotationService{db: db, settings: settings}
}

// Get loads a quotation with its customer and items in position order.
func (s *QuotationService) Get(id string) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		First(&q, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuotationNotFound
		}
		return nil, err
	}
	return &q, nil
}

// Context builds the render context for a stored quotation.
func (s *QuotationService) Context(q *models.Quotation) (render.RenderContext, error) {
	company, err := s.settings.CompanyProfile()
	if err != nil {
		return render.RenderContext{}, err
	}
	return BuildRenderContext(q, company), nil
}

// BuildRenderContext flattens a quotation into template namespaces. Money
// values are preformatted with the quotation's currency symbol.
func BuildRenderContext(q *models.Quotation, company map[string]interface{}) render.RenderContext {
	symbol := CurrencySymbol(q.Currency)
	money := func(v float64) string { return render.FormatMoney(v, symbol) }

	items := make([]map[string]interface{}, 0, len(q.Items))
	var computed float64
	for _, it := range q.Items {
		amount := it.LineAmount()
		computed += amount
		items = append(items, map[string]interface{}{
			"description": it.Description,
			"quantity":    it.Quantity,
			"unit":        it.Unit,
			"rate":        money(it.Rate),
			"amount":      money(amount),
		})
	}

	subtotal := q.Subtotal
	if subtotal == 0 {
		subtotal = computed
	}
	tax := q.TaxAmount
	if tax == 0 && q.TaxRate > 0 {
		tax = round2((subtotal - q.Discount) * q.TaxRate / 100)
	}
	total := q.Total
	if total == 0 {
		total = subtotal - q.Discount + tax
	}

	totals := map[string]interface{}{
		"subtotal": money(subtotal),
		"total":    money(total),
	}
	if q.Discount != 0 {
		totals["discount"] = money(q.Discount)
	}
	if tax != 0 {
		totals["tax"] = money(tax)
	}

	quotation := map[string]interface{}{
		"id":       q.ID,
		"number":   q.Number,
		"status":   q.Status,
		"currency": q.Currency,
		"terms":    q.Terms,
		"notes":    q.Notes,
		"tax_rate": q.TaxRate,
	}
	if !q.CreatedAt.IsZero() {
		quotation["date"] = q.CreatedAt.Format(quotationDateLayout)
	}
	if q.ValidUntil != nil {
		quotation["valid_until"] = q.ValidUntil.Format(quotationDateLayout)
	}
	if q.DealID != "" {
		quotation["reference"] = q.DealID
	}

	client := map[string]interface{}{}
	if c := q.Customer; c != nil {
		client = map[string]interface{}{
			"id":         c.ID,
			"name":       c.Name,
			"company":    c.Company,
			"email":      c.Email,
			"phone":      c.Phone,
			"address":    c.Address,
			"gst_number": c.GSTNumber,
		}
		for k, v := range client {
			if v == "" {
				delete(client, k)
			}
		}
	}

	return render.RenderContext{
		Company:        company,
		Client:         client,
		Quotation:      quotation,
		Items:          items,
		Totals:         totals,
		CurrencySymbol: symbol,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// DocumentService renders stored quotations through a template into HTML or PDF.
type DocumentService struct {
	quotations   *QuotationService
	templates    *TemplateService
	generator    *pdf.Generator
	validityDays int
	now          func() time.Time

	// PDFTimeout bounds one PDF generation; zero uses pdf.DefaultTimeout.
	PDFTimeout time.Duration
}

func NewDocumentService(quotations *QuotationService, templates *TemplateService, generator *pdf.Generator, validityDays int) *DocumentService {
	return &DocumentService{
		quotations:   quotations,
		templates:    templates,
		generator:    generator,
		validityDays: validityDays,
		now:          time.Now,
	}
}

// PrintResult is the rendered document plus how it was produced.
type PrintResult struct {
	pdf.Result
	TemplateID    string
	ElementErrors []render.ElementError
}

// Print renders quotationID with templateID (or the default template).
// format "html" skips the PDF engine. PDF failures fall back to HTML and are
// not errors.
func (s *DocumentService) Print(ctx context.Context, quotationID, templateID, format string) (*PrintResult, error) {
	q, err := s.quotations.Get(quotationID)
	if err != nil {
		return nil, err
	}
	var tpl *models.QuotationTemplate
	if templateID != "" {
		tpl, err = s.templates.Get(templateID)
	} else {
		tpl, err = s.templates.GetDefault()
	}
	if err != nil {
		return nil, err
	}
	rc, err := s.quotations.Context(q)
	if err != nil {
		return nil, err
	}

	doc := s.Render(*tpl, rc, q.Number)
	res := &PrintResult{TemplateID: tpl.ID, ElementErrors: doc.Errors}
	filename := sanitizeFilename(q.Number)

	if strings.EqualFold(format, "html") {
		res.Result = pdf.Result{Data: []byte(doc.HTML), ContentType: "text/html", Filename: filename + ".html"}
		metrics.IncDocument("html")
		return res, nil
	}

	res.Result = s.generator.Generate(ctx, doc.HTML, pdf.Options{Filename: filename, Timeout: s.PDFTimeout})
	mode := "pdf"
	if res.Fallback {
		mode = "html_fallback"
	}
	metrics.IncDocument(mode)
	logger.Component("documents").WithFields(logrus.Fields{
		"quotation_id": q.ID,
		"template_id":  tpl.ID,
		"mode":         mode,
	}).Info("quotation rendered")
	return res, nil
}

// Render assembles a template against an explicit context, used by previews.
func (s *DocumentService) Render(tpl models.QuotationTemplate, rc render.RenderContext, title string) render.Document {
	return render.Assemble(tpl, rc, render.Options{
		Title:        title,
		ValidityDays: s.validityDays,
		Now:          s.now,
	})
}

func sanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "quotation"
	}
	return fmt.Sprintf("quotation-%s", s)
}

// sampleQuotation fills previews when the caller supplies no context.
func sampleQuotation(now time.Time) *models.Quotation {
	valid := now.AddDate(0, 0, render.DefaultValidityDays)
	return &models.Quotation{
		Number:   "Q-SAMPLE-001",
		Status:   "draft",
		Currency: "INR",
		Customer: &models.Customer{
			Name:    "Sample Customer",
			Company: "Sample Infra Pvt Ltd",
			Email:   "customer@example.com",
			Phone:   "+91 98765 43210",
			Address: "Plot 12, Industrial Area",
		},
		Items: []models.QuotationItem{
			{Position: 1, Description: "50T mobile crane rental", Quantity: 5, Unit: "day", Rate: 25000},
			{Position: 2, Description: "Crane operator", Quantity: 5, Unit: "day", Rate: 2500},
			{Position: 3, Description: "Mobilisation and demobilisation", Quantity: 1, Unit: "trip", Rate: 15000},
		},
		TaxRate:    18,
		ValidUntil: &valid,
		Terms:      "Payment within 15 days of invoice.",
	}
}

// Preview renders templateID against rc, or against a sample quotation and
// the stored company profile when rc is nil. Inactive templates can be
// previewed.
func (s *DocumentService) Preview(templateID string, rc *render.RenderContext) (render.Document, error) {
	tpl, err := s.templates.Get(templateID)
	if err != nil {
		return render.Document{}, err
	}
	if rc == nil {
		q := sampleQuotation(s.now())
		ctx, err := s.quotations.Context(q)
		if err != nil {
			return render.Document{}, err
		}
		rc = &ctx
	}
	title := tpl.Name
	if n, ok := rc.Quotation["number"].(string); ok && n != "" {
		title = n
	}
	return s.Render(*tpl, *rc, title), nil
}
