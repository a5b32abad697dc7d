package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/render"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

// TemplateHandler exposes the quotation template builder.
type TemplateHandler struct {
	templates *services.TemplateService
	documents *services.DocumentService
}

func NewTemplateHandler(templates *services.TemplateService, documents *services.DocumentService) *TemplateHandler {
	return &TemplateHandler{templates: templates, documents: documents}
}

func (h *TemplateHandler) List(c *gin.Context) {
	list, err := h.templates.List(c.Query("include_inactive") == "true")
	if err != nil {
		respondError(c, err, "Failed to list templates")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.templates.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load template")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var tpl models.QuotationTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl.ID = ""
	tpl.IsActive = true
	tpl.CreatedBy = currentUserID(c)
	warnings, err := h.templates.Create(&tpl)
	if err != nil {
		respondError(c, err, "Failed to create template")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": tpl, "warnings": warnings})
}

func (h *TemplateHandler) Update(c *gin.Context) {
	var patch services.TemplatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl, warnings, err := h.templates.Update(c.Param("id"), patch)
	if err != nil {
		respondError(c, err, "Failed to update template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl, "warnings": warnings})
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

func (h *TemplateHandler) SetDefault(c *gin.Context) {
	if err := h.templates.SetDefault(c.Param("id")); err != nil {
		respondError(c, err, "Failed to set default template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Default template updated"})
}

func (h *TemplateHandler) Duplicate(c *gin.Context) {
	tpl, err := h.templates.Duplicate(c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to duplicate template")
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// PreviewRequest carries an explicit render context. An empty body previews
// against sample data.
type PreviewRequest struct {
	Company        map[string]interface{}   `json:"company"`
	Client         map[string]interface{}   `json:"client"`
	Quotation      map[string]interface{}   `json:"quotation"`
	Items          []map[string]interface{} `json:"items"`
	Totals         map[string]interface{}   `json:"totals"`
	CurrencySymbol string                   `json:"currency_symbol"`
}

func (r PreviewRequest) empty() bool {
	return r.Company == nil && r.Client == nil && r.Quotation == nil && r.Items == nil && r.Totals == nil
}

// Preview returns the assembled HTML. X-Element-Errors counts elements that
// were replaced by an error marker.
func (h *TemplateHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	var rc *render.RenderContext
	if !req.empty() {
		rc = &render.RenderContext{
			Company:        req.Company,
			Client:         req.Client,
			Quotation:      req.Quotation,
			Items:          req.Items,
			Totals:         req.Totals,
			CurrencySymbol: req.CurrencySymbol,
		}
		if rc.CurrencySymbol == "" {
			rc.CurrencySymbol = services.CurrencySymbol("")
		}
	}
	doc, err := h.documents.Preview(c.Param("id"), rc)
	if err != nil {
		respondError(c, err, "Failed to render preview")
		return
	}
	c.Header("X-Element-Errors", strconv.Itoa(len(doc.Errors)))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.HTML))
}
