package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

// NotificationAdminHandler manages rules and message templates.
type NotificationAdminHandler struct {
	service *services.NotificationService
}

func NewNotificationAdminHandler(service *services.NotificationService) *NotificationAdminHandler {
	return &NotificationAdminHandler{service: service}
}

func (h *NotificationAdminHandler) ListRules(c *gin.Context) {
	rules, err := h.service.ListRules()
	if err != nil {
		respondError(c, err, "Failed to list rules")
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *NotificationAdminHandler) CreateRule(c *gin.Context) {
	var rule models.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = ""
	if err := h.service.CreateRule(&rule); err != nil {
		respondError(c, err, "Failed to create rule")
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *NotificationAdminHandler) UpdateRule(c *gin.Context) {
	var rule models.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = c.Param("id")
	if err := h.service.UpdateRule(&rule); err != nil {
		respondError(c, err, "Failed to update rule")
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *NotificationAdminHandler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete rule")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}

func (h *NotificationAdminHandler) ListTemplates(c *gin.Context) {
	list, err := h.service.ListTemplates()
	if err != nil {
		respondError(c, err, "Failed to list templates")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationAdminHandler) CreateTemplate(c *gin.Context) {
	var tmpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tmpl.ID = ""
	if err := h.service.CreateTemplate(&tmpl); err != nil {
		respondError(c, err, "Failed to create template")
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *NotificationAdminHandler) UpdateTemplate(c *gin.Context) {
	var tmpl models.NotificationTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tmpl.ID = c.Param("id")
	if err := h.service.UpdateTemplate(&tmpl); err != nil {
		respondError(c, err, "Failed to update template")
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *NotificationAdminHandler) DeleteTemplate(c *gin.Context) {
	if err := h.service.DeleteTemplate(c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}
