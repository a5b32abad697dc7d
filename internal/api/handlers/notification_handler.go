package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

// NotificationHandler serves the caller's inbox and event dispatch.
type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unreadOnly := c.Query("unread") == "true"

	list, total, err := h.service.List(currentUserID(c), unreadOnly, limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "total": total})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(currentUserID(c))
	if err != nil {
		respondError(c, err, "Failed to count notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	if err := h.service.MarkAsRead(currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to mark notification as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	n, err := h.service.MarkAllAsRead(currentUserID(c))
	if err != nil {
		respondError(c, err, "Failed to mark all notifications as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}

// Send dispatches an event. Delivery failures are reported per
// (recipient, channel) in a 200 response.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req services.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.service.Send(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to send notification")
		return
	}
	code := http.StatusOK
	if res.Scheduled {
		code = http.StatusAccepted
	}
	c.JSON(code, res)
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	pref, err := h.service.GetPreferences(currentUserID(c))
	if err != nil {
		respondError(c, err, "Failed to load preferences")
		return
	}
	c.JSON(http.StatusOK, pref)
}

// UpdatePreferences applies the posted switches over the stored ones, so
// omitted channels keep their current value.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID := currentUserID(c)
	pref, err := h.service.GetPreferences(userID)
	if err != nil {
		respondError(c, err, "Failed to load preferences")
		return
	}
	if err := c.ShouldBindJSON(&pref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.service.UpdatePreferences(userID, pref)
	if err != nil {
		respondError(c, err, "Failed to save preferences")
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Analytics summarises the last `days` days (default 30).
func (h *NotificationHandler) Analytics(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	out, err := h.service.Analytics(time.Now().AddDate(0, 0, -days))
	if err != nil {
		respondError(c, err, "Failed to compute analytics")
		return
	}
	c.JSON(http.StatusOK, out)
}
