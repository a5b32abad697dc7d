package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/metrics"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/placeholder"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/util"
)

var (
	ErrNotificationTemplateMissing = errors.New("notification template missing")
	ErrNotificationNotFound        = errors.New("notification not found")
	ErrInvalidNotification         = errors.New("notification type is required")
)

// Delivery failure reasons reported in DeliveryResult.Reason.
const (
	ReasonEmailNotConfigured = "Email service not configured"
	ReasonNoEmail            = "no email address"
	ReasonSMSNotConfigured   = "SMS service not configured"
	ReasonNoPhone            = "no phone number"
	ReasonPushUnsupported    = "Push notifications not implemented"
	ReasonUnknownChannel     = "unknown channel"
	ReasonDisabled           = "disabled by preference"
	ReasonNoActiveRule       = "no active rule"
)

// notificationDefaults fill placeholders the event data did not carry.
var notificationDefaults = map[string]string{
	"quotation.number": "Q-001",
	"quotation.total":  "₹0",
	"customer.name":    "Customer",
	"lead.name":        "Lead",
	"lead.source":      "website",
	"deal.title":       "Deal",
	"deal.value":       "₹0",
	"job.id":           "N/A",
	"job.site":         "site",
	"equipment.name":   "Equipment",
	"user.name":        "Team member",
}

// RealtimeNotifier pushes payloads to connected users.
type RealtimeNotifier interface {
	IsOnline(userID string) bool
	Push(userID string, payload interface{}) bool
}

// Recipient is an explicit delivery target. Email and Phone are looked up
// from the user when left empty.
type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SendRequest describes one business event to notify about.
type SendRequest struct {
	Type          string                 `json:"type"`
	Recipients    []Recipient            `json:"recipients,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Channels      []models.Channel       `json:"channels,omitempty"`
	Priority      models.Priority        `json:"priority,omitempty"`
	ReferenceID   string                 `json:"reference_id,omitempty"`
	ReferenceType string                 `json:"reference_type,omitempty"`
	ScheduleAt    *time.Time             `json:"schedule_at,omitempty"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
}

// DeliveryResult is the outcome of one (recipient, channel) attempt.
type DeliveryResult struct {
	RecipientID string         `json:"recipient_id"`
	Channel     models.Channel `json:"channel"`
	Success     bool           `json:"success"`
	MessageID   string         `json:"message_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// SendResult aggregates a dispatch. Success is true when at least one
// delivery succeeded.
type SendResult struct {
	Success     bool             `json:"success"`
	Scheduled   bool             `json:"scheduled,omitempty"`
	ScheduledID string           `json:"scheduled_id,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Results     []DeliveryResult `json:"results"`
	Broadcasts  []DeliveryResult `json:"broadcasts,omitempty"`
}

// NotificationService dispatches events to users over in-app, email, SMS
// and push, and manages the inbox, rules, templates and providers.
type NotificationService struct {
	DB       *gorm.DB
	email    EmailSender
	sms      SMSSender
	realtime RealtimeNotifier
	now      func() time.Time
	sendURL  func(url, message string) error
}

// NewNotificationService wires the delivery transports. Nil transports
// produce the "not configured" failures.
func NewNotificationService(db *gorm.DB, email EmailSender, sms SMSSender, realtime RealtimeNotifier) *NotificationService {
	return &NotificationService{
		DB:       db,
		email:    email,
		sms:      sms,
		realtime: realtime,
		now:      time.Now,
		sendURL:  shoutrrrSend,
	}
}

type renderedMessage struct {
	Subject string
	Message string
	Email   string
	SMS     string
}

func renderNotification(tmpl *models.NotificationTemplate, data map[string]interface{}) renderedMessage {
	opt := placeholder.WithDefaults(notificationDefaults)
	out := renderedMessage{
		Subject: placeholder.Resolve(tmpl.SubjectTemplate, data, opt),
		Message: placeholder.Resolve(tmpl.MessageTemplate, data, opt),
	}
	// email bodies are HTML, so substituted values are escaped
	emailTmpl := tmpl.EmailTemplate
	if emailTmpl == "" {
		emailTmpl = tmpl.MessageTemplate
	}
	out.Email = placeholder.ResolveHTML(emailTmpl, data, opt)
	out.SMS = out.Message
	if tmpl.SMSTemplate != "" {
		out.SMS = placeholder.Resolve(tmpl.SMSTemplate, data, opt)
	}
	return out
}

// Send renders and fans out an event. Delivery problems are reported in the
// result; an error means the request itself could not be processed.
func (s *NotificationService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.Type == "" {
		return nil, ErrInvalidNotification
	}
	log := logger.Component("notifications").WithField("type", req.Type)

	if req.ScheduleAt != nil && req.ScheduleAt.After(s.now()) {
		return s.schedule(req)
	}

	var tmpl models.NotificationTemplate
	if err := s.DB.Where("type = ?", req.Type).First(&tmpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("no notification template for event")
			return &SendResult{Reason: ErrNotificationTemplateMissing.Error(), Results: []DeliveryResult{}}, nil
		}
		return nil, fmt.Errorf("load notification template: %w", err)
	}

	var rule models.NotificationRule
	if err := s.DB.Where("event_type = ?", req.Type).First(&rule).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load notification rule: %w", err)
		}
		rule = models.NotificationRule{}
	}
	if !rule.IsActive {
		log.Debug("event skipped, no active rule")
		return &SendResult{Reason: ReasonNoActiveRule, Results: []DeliveryResult{}}, nil
	}

	recipients, err := s.resolveRecipients(req.Recipients, rule.UserRoles)
	if err != nil {
		return nil, err
	}
	channels := req.Channels
	if len(channels) == 0 {
		for _, c := range rule.Channels {
			channels = append(channels, models.Channel(c))
		}
	}
	prefs, err := s.preferencesFor(recipients)
	if err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}

	msg := renderNotification(&tmpl, req.Data)
	result := &SendResult{Results: s.fanOut(ctx, req, msg, recipients, channels, prefs)}
	for _, r := range result.Results {
		if r.Success {
			result.Success = true
			break
		}
	}
	result.Broadcasts = s.broadcast(ctx, req.Type, msg)

	log.WithFields(logrus.Fields{
		"recipients": len(recipients),
		"channels":   len(channels),
		"success":    result.Success,
	}).Info("notification dispatched")
	return result, nil
}

func (s *NotificationService) schedule(req SendRequest) (*SendResult, error) {
	at := *req.ScheduleAt
	req.ScheduleAt = nil
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode scheduled notification: %w", err)
	}
	row := &models.ScheduledNotification{
		Type:        req.Type,
		Payload:     payload,
		ScheduledAt: at,
		Status:      models.ScheduleStatusPending,
	}
	if err := s.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("store scheduled notification: %w", err)
	}
	logger.Component("notifications").WithFields(logrus.Fields{
		"type":         req.Type,
		"scheduled_at": at.Format(time.RFC3339),
	}).Info("notification scheduled")
	return &SendResult{Success: true, Scheduled: true, ScheduledID: row.ID, Results: []DeliveryResult{}}, nil
}

// resolveRecipients returns explicit recipients (filled in from users) or
// every enabled user holding one of roles.
func (s *NotificationService) resolveRecipients(explicit []Recipient, roles []string) ([]Recipient, error) {
	if len(explicit) > 0 {
		ids := make([]string, 0, len(explicit))
		for _, r := range explicit {
			if r.ID != "" {
				ids = append(ids, r.ID)
			}
		}
		byID := map[string]models.User{}
		if len(ids) > 0 {
			var users []models.User
			if err := s.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
				return nil, fmt.Errorf("load recipients: %w", err)
			}
			for _, u := range users {
				byID[u.ID] = u
			}
		}
		out := make([]Recipient, len(explicit))
		for i, r := range explicit {
			if u, ok := byID[r.ID]; ok {
				if r.Email == "" {
					r.Email = u.Email
				}
				if r.Phone == "" {
					r.Phone = u.Phone
				}
				if r.Name == "" {
					r.Name = u.Name
				}
			}
			out[i] = r
		}
		return out, nil
	}

	if len(roles) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.Where("enabled = ? AND role IN ?", true, roles).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("expand rule roles: %w", err)
	}
	out := make([]Recipient, len(users))
	for i, u := range users {
		out[i] = Recipient{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
	}
	return out, nil
}

func (s *NotificationService) preferencesFor(recipients []Recipient) (map[string]models.NotificationPreference, error) {
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	out := make(map[string]models.NotificationPreference, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var prefs []models.NotificationPreference
	if err := s.DB.Where("user_id IN ?", ids).Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	for _, p := range prefs {
		out[p.UserID] = p
	}
	return out, nil
}

// fanOut runs every (recipient, channel) pair concurrently. Results keep
// enumeration order: recipients outer, channels inner.
func (s *NotificationService) fanOut(ctx context.Context, req SendRequest, msg renderedMessage, recipients []Recipient, channels []models.Channel, prefs map[string]models.NotificationPreference) []DeliveryResult {
	results := make([]DeliveryResult, len(recipients)*len(channels))
	var wg sync.WaitGroup
	for i, rcpt := range recipients {
		pref, ok := prefs[rcpt.ID]
		if !ok {
			pref = models.DefaultPreference(rcpt.ID)
		}
		for j, ch := range channels {
			idx := i*len(channels) + j
			wg.Add(1)
			go func(idx int, rcpt Recipient, ch models.Channel, pref models.NotificationPreference) {
				defer wg.Done()
				res := DeliveryResult{RecipientID: rcpt.ID, Channel: ch}
				func() {
					defer func() {
						if p := recover(); p != nil {
							res.Success = false
							res.Reason = fmt.Sprintf("delivery panic: %v", p)
						}
					}()
					if !pref.Allows(ch) {
						res.Reason = ReasonDisabled
						return
					}
					res = s.deliver(ctx, req, msg, rcpt, ch)
				}()
				results[idx] = res
				s.audit(req.Type, res)
			}(idx, rcpt, ch, pref)
		}
	}
	wg.Wait()
	return results
}

func (s *NotificationService) deliver(ctx context.Context, req SendRequest, msg renderedMessage, rcpt Recipient, ch models.Channel) DeliveryResult {
	res := DeliveryResult{RecipientID: rcpt.ID, Channel: ch}
	switch ch {
	case models.ChannelInApp:
		n := &models.Notification{
			UserID:        rcpt.ID,
			Title:         msg.Subject,
			Message:       msg.Message,
			Type:          req.Type,
			Priority:      req.Priority,
			ReferenceID:   req.ReferenceID,
			ReferenceType: req.ReferenceType,
			ExpiresAt:     req.ExpiresAt,
		}
		if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
			res.Reason = err.Error()
			return res
		}
		res.Success = true
		res.MessageID = n.ID
		if s.realtime != nil && s.realtime.IsOnline(rcpt.ID) {
			s.realtime.Push(rcpt.ID, n)
		}

	case models.ChannelEmail:
		if s.email == nil || !s.email.IsConfigured() {
			res.Reason = ReasonEmailNotConfigured
			return res
		}
		if rcpt.Email == "" {
			res.Reason = ReasonNoEmail
			return res
		}
		id, err := s.email.Send(ctx, EmailMessage{To: rcpt.Email, Subject: msg.Subject, HTMLBody: msg.Email})
		if err != nil {
			res.Reason = err.Error()
			return res
		}
		res.Success, res.MessageID = true, id

	case models.ChannelSMS:
		if s.sms == nil || !s.sms.IsConfigured() {
			res.Reason = ReasonSMSNotConfigured
			return res
		}
		if rcpt.Phone == "" {
			res.Reason = ReasonNoPhone
			return res
		}
		id, err := s.sms.SendSMS(ctx, rcpt.Phone, msg.SMS)
		if err != nil {
			res.Reason = err.Error()
			return res
		}
		res.Success, res.MessageID = true, id

	case models.ChannelPush:
		res.Reason = ReasonPushUnsupported

	default:
		res.Reason = ReasonUnknownChannel
	}
	return res
}

// audit writes the notification_logs row for an attempt. Audit failures are
// logged and never change the delivery result.
func (s *NotificationService) audit(eventType string, res DeliveryResult) {
	metrics.IncDelivery(string(res.Channel), res.Success)
	row := &models.NotificationLog{
		Type:        eventType,
		Channel:     res.Channel,
		RecipientID: res.RecipientID,
		Success:     res.Success,
		MessageID:   res.MessageID,
		Error:       res.Reason,
	}
	if err := s.DB.Create(row).Error; err != nil {
		logger.Component("notifications").WithError(err).WithFields(logrus.Fields{
			"channel":   res.Channel,
			"recipient": util.SanitizeForLog(res.RecipientID),
		}).Error("failed to write notification log")
	}
}
