package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/middleware"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

type QuotationHandler struct {
	documents *services.DocumentService
}

func NewQuotationHandler(documents *services.DocumentService) *QuotationHandler {
	return &QuotationHandler{documents: documents}
}

// Print streams the quotation as a PDF, or as HTML when format=html or the
// PDF engine failed. X-PDF-Fallback is "true" in the latter case.
func (h *QuotationHandler) Print(c *gin.Context) {
	format := c.DefaultQuery("format", "pdf")
	if format != "pdf" && format != "html" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be pdf or html"})
		return
	}
	res, err := h.documents.Print(c.Request.Context(), c.Param("id"), c.Query("template_id"), format)
	if err != nil {
		respondError(c, err, "Failed to print quotation")
		return
	}

	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, res.Filename))
	c.Header("X-PDF-Fallback", strconv.FormatBool(res.Fallback))
	c.Header("X-Template-ID", res.TemplateID)
	if res.Error != "" {
		middleware.GetRequestLogger(c).WithField("reason", res.Error).Warn("pdf generation fell back to html")
	}
	contentType := res.ContentType
	if contentType == "text/html" {
		contentType = "text/html; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, res.Data)
}
