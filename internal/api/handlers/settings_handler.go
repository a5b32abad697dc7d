package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

const maskedPassword = "********"

type SettingsHandler struct {
	settings *services.SettingsService
	mail     *services.MailService
}

func NewSettingsHandler(settings *services.SettingsService, mail *services.MailService) *SettingsHandler {
	return &SettingsHandler{settings: settings, mail: mail}
}

// GetSettings returns all settings as a key/value map. SMTP secrets are masked.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	all, err := h.settings.All()
	if err != nil {
		respondError(c, err, "Failed to fetch settings")
		return
	}
	if all["smtp_password"] != "" {
		all["smtp_password"] = maskedPassword
	}
	c.JSON(http.StatusOK, all)
}

type UpdateSettingRequest struct {
	Key      string `json:"key" binding:"required"`
	Value    string `json:"value"`
	Category string `json:"category"`
	Type     string `json:"type"`
}

// UpdateSetting upserts one setting.
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	setting := models.Setting{Key: req.Key, Value: req.Value, Category: req.Category, Type: req.Type}
	if setting.Category == "" {
		setting.Category = "general"
	}
	if err := h.settings.Upsert(&setting); err != nil {
		respondError(c, err, "Failed to save setting")
		return
	}
	c.JSON(http.StatusOK, setting)
}

func (h *SettingsHandler) GetSMTPConfig(c *gin.Context) {
	cfg, err := h.mail.GetSMTPConfig()
	if err != nil {
		respondError(c, err, "Failed to fetch SMTP configuration")
		return
	}
	if cfg.Password != "" {
		cfg.Password = maskedPassword
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg, "configured": cfg.Host != "" && cfg.FromAddress != ""})
}

type SMTPConfigRequest struct {
	Host        string `json:"host" binding:"required"`
	Port        int    `json:"port" binding:"required,min=1,max=65535"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address" binding:"required,email"`
	Encryption  string `json:"encryption" binding:"omitempty,oneof=none ssl starttls"`
}

// UpdateSMTPConfig saves SMTP settings. The masked password placeholder keeps
// the stored password.
func (h *SettingsHandler) UpdateSMTPConfig(c *gin.Context) {
	var req SMTPConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	password := req.Password
	if password == maskedPassword {
		current, err := h.mail.GetSMTPConfig()
		if err != nil {
			respondError(c, err, "Failed to save SMTP configuration")
			return
		}
		password = current.Password
	}
	cfg := &services.SMTPConfig{
		Host:        req.Host,
		Port:        req.Port,
		Username:    req.Username,
		Password:    password,
		FromAddress: req.FromAddress,
		Encryption:  req.Encryption,
	}
	if cfg.Encryption == "" {
		cfg.Encryption = "starttls"
	}
	if err := h.mail.SaveSMTPConfig(cfg); err != nil {
		respondError(c, err, "Failed to save SMTP configuration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SMTP configuration saved"})
}

func (h *SettingsHandler) TestSMTPConfig(c *gin.Context) {
	if err := h.mail.TestConnection(); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "SMTP connection successful"})
}
