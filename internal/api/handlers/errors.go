package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/middleware"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

// statusFor maps service sentinels to HTTP status codes.
func statusFor(err error) int {
	var invalid *services.TemplateValidationError
	switch {
	case errors.As(err, &invalid),
		errors.Is(err, services.ErrInvalidNotification),
		errors.Is(err, services.ErrInvalidChannel):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrQuotationNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrRuleNotFound),
		errors.Is(err, services.ErrNotificationTemplateNotFound),
		errors.Is(err, services.ErrProviderNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTemplateInactive),
		errors.Is(err, services.ErrDefaultConflict),
		errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrAccountLocked),
		errors.Is(err, services.ErrAccountDisabled):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err as JSON. Internal errors are logged and replaced
// with fallback so storage details never reach the client.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.GetRequestLogger(c).WithError(err).Error(fallback)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	body := gin.H{"error": err.Error()}
	var invalid *services.TemplateValidationError
	if errors.As(err, &invalid) {
		body["problems"] = invalid.Problems
	}
	c.JSON(status, body)
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}
