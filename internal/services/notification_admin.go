package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

var (
	ErrRuleNotFound                 = errors.New("notification rule not found")
	ErrNotificationTemplateNotFound = errors.New("notification template not found")
	ErrInvalidChannel               = errors.New("invalid channel")
)

var validChannels = map[models.Channel]bool{
	models.ChannelInApp: true,
	models.ChannelEmail: true,
	models.ChannelSMS:   true,
	models.ChannelPush:  true,
}

func validateRule(r *models.NotificationRule) error {
	if strings.TrimSpace(r.EventType) == "" {
		return errors.New("event_type is required")
	}
	for _, c := range r.Channels {
		if !validChannels[models.Channel(c)] {
			return fmt.Errorf("%w: %s", ErrInvalidChannel, c)
		}
	}
	return nil
}

func (s *NotificationService) ListRules() ([]models.NotificationRule, error) {
	var rules []models.NotificationRule
	err := s.DB.Order("event_type asc").Find(&rules).Error
	return rules, err
}

func (s *NotificationService) GetRule(id string) (*models.NotificationRule, error) {
	var r models.NotificationRule
	if err := s.DB.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *NotificationService) CreateRule(r *models.NotificationRule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	return s.DB.Create(r).Error
}

// UpdateRule replaces roles, channels, conditions and the active flag.
func (s *NotificationService) UpdateRule(r *models.NotificationRule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	res := s.DB.Model(&models.NotificationRule{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
		"event_type": r.EventType,
		"user_roles": r.UserRoles,
		"channels":   r.Channels,
		"conditions": r.Conditions,
		"is_active":  r.IsActive,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *NotificationService) DeleteRule(id string) error {
	res := s.DB.Delete(&models.NotificationRule{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *NotificationService) ListTemplates() ([]models.NotificationTemplate, error) {
	var list []models.NotificationTemplate
	err := s.DB.Order("type asc").Find(&list).Error
	return list, err
}

func (s *NotificationService) GetTemplate(id string) (*models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	if err := s.DB.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *NotificationService) CreateTemplate(t *models.NotificationTemplate) error {
	if strings.TrimSpace(t.Type) == "" {
		return errors.New("type is required")
	}
	return s.DB.Create(t).Error
}

func (s *NotificationService) UpdateTemplate(t *models.NotificationTemplate) error {
	res := s.DB.Model(&models.NotificationTemplate{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"subject_template": t.SubjectTemplate,
		"message_template": t.MessageTemplate,
		"email_template":   t.EmailTemplate,
		"sms_template":     t.SMSTemplate,
		"description":      t.Description,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationTemplateNotFound
	}
	return nil
}

func (s *NotificationService) DeleteTemplate(id string) error {
	res := s.DB.Delete(&models.NotificationTemplate{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationTemplateNotFound
	}
	return nil
}

type defaultEvent struct {
	eventType string
	roles     []string
	channels  []string
	subject   string
	message   string
	sms       string
}

var defaultEvents = []defaultEvent{
	{"lead_created", []string{"admin", "manager", "sales_agent"}, []string{"in_app", "email"},
		"New lead: {{lead.name}}", "A new lead {{lead.name}} was created from {{lead.source}}.", ""},
	{"lead_assigned", []string{"sales_agent"}, []string{"in_app", "email", "sms"},
		"Lead assigned: {{lead.name}}", "Lead {{lead.name}} has been assigned to you.", "Lead {{lead.name}} assigned to you."},
	{"deal_won", []string{"admin", "manager", "finance"}, []string{"in_app", "email"},
		"Deal won: {{deal.title}}", "Deal {{deal.title}} worth {{deal.value}} was won.", ""},
	{"deal_lost", []string{"admin", "manager"}, []string{"in_app"},
		"Deal lost: {{deal.title}}", "Deal {{deal.title}} was marked as lost.", ""},
	{"quotation_sent", []string{"admin", "manager", "sales_agent"}, []string{"in_app"},
		"Quotation {{quotation.number}} sent", "Quotation {{quotation.number}} was sent to {{customer.name}}.", ""},
	{"quotation_accepted", []string{"admin", "manager", "sales_agent", "finance"}, []string{"in_app", "email"},
		"Quotation {{quotation.number}} accepted", "{{customer.name}} accepted quotation {{quotation.number}} ({{quotation.total}}).", ""},
	{"job_assigned", []string{"operator", "operations_manager"}, []string{"in_app", "sms"},
		"Job {{job.id}} assigned", "You have been assigned job {{job.id}} at {{job.site}}.", "Job {{job.id}} at {{job.site}} assigned to you."},
	{"job_completed", []string{"admin", "operations_manager", "finance"}, []string{"in_app", "email"},
		"Job {{job.id}} completed", "Job {{job.id}} at {{job.site}} was completed.", ""},
	{"equipment_maintenance_due", []string{"operations_manager"}, []string{"in_app", "email"},
		"Maintenance due: {{equipment.name}}", "{{equipment.name}} is due for maintenance on {{equipment.due_date}}.", ""},
}

// InitDefaults seeds a rule and template for every built-in event. Existing
// rows are left untouched.
func (s *NotificationService) InitDefaults() error {
	for _, ev := range defaultEvents {
		tmpl := models.NotificationTemplate{
			Type:            ev.eventType,
			SubjectTemplate: ev.subject,
			MessageTemplate: ev.message,
			SMSTemplate:     ev.sms,
			Description:     "Built-in " + strings.ReplaceAll(ev.eventType, "_", " ") + " notification",
		}
		res := s.DB.Where(models.NotificationTemplate{Type: ev.eventType}).Attrs(tmpl).FirstOrCreate(&tmpl)
		if res.Error != nil {
			return fmt.Errorf("seed template %s: %w", ev.eventType, res.Error)
		}

		rule := models.NotificationRule{
			EventType: ev.eventType,
			UserRoles: ev.roles,
			Channels:  ev.channels,
			IsActive:  true,
		}
		res = s.DB.Where(models.NotificationRule{EventType: ev.eventType}).Attrs(rule).FirstOrCreate(&rule)
		if res.Error != nil {
			return fmt.Errorf("seed rule %s: %w", ev.eventType, res.Error)
		}
	}
	logger.Component("notifications").WithField("events", len(defaultEvents)).Debug("default notification rules and templates ensured")
	return nil
}
