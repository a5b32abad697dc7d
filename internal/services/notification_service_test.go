package services

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

type fakeEmail struct {
	mu         sync.Mutex
	configured bool
	sent       []EmailMessage
	err        error
}

func (f *fakeEmail) IsConfigured() bool { return f.configured }

func (f *fakeEmail) Send(_ context.Context, msg EmailMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "mail-1", nil
}

type fakeSMS struct {
	mu    sync.Mutex
	sent  []string
	panic bool
}

func (f *fakeSMS) IsConfigured() bool { return true }

func (f *fakeSMS) SendSMS(_ context.Context, phone, message string) (string, error) {
	if f.panic {
		panic("carrier exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+": "+message)
	return "sms-1", nil
}

type fakeRealtime struct {
	mu     sync.Mutex
	online map[string]bool
	pushed []string
}

func (f *fakeRealtime) IsOnline(userID string) bool { return f.online[userID] }

func (f *fakeRealtime) Push(userID string, _ interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, userID)
	return true
}

func seedEvent(t *testing.T, svc *NotificationService, eventType string, active bool, roles, channels []string) {
	t.Helper()
	require.NoError(t, svc.DB.Create(&models.NotificationTemplate{
		Type:            eventType,
		SubjectTemplate: "New lead: {{lead.name}}",
		MessageTemplate: "Lead {{lead.name}} for {{customer.name}}",
		SMSTemplate:     "SMS {{lead.name}}",
	}).Error)
	require.NoError(t, svc.CreateRule(&models.NotificationRule{
		EventType: eventType,
		UserRoles: roles,
		Channels:  channels,
		IsActive:  active,
	}))
}

func logsFor(t *testing.T, svc *NotificationService) []models.NotificationLog {
	t.Helper()
	var logs []models.NotificationLog
	require.NoError(t, svc.DB.Order("channel asc").Find(&logs).Error)
	return logs
}

func TestSend_InAppAndUnconfiguredEmail(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	seedEvent(t, svc, "lead_created", true, []string{"admin"}, []string{"in_app"})

	res, err := svc.Send(context.Background(), SendRequest{
		Type:       "lead_created",
		Recipients: []Recipient{{ID: "u1", Email: "a@b.com"}},
		Channels:   []models.Channel{models.ChannelInApp, models.ChannelEmail},
		Data:       map[string]interface{}{"lead": map[string]interface{}{"name": "Tata Projects"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Success)

	assert.Equal(t, models.ChannelInApp, res.Results[0].Channel)
	assert.True(t, res.Results[0].Success)
	assert.Equal(t, DeliveryResult{RecipientID: "u1", Channel: models.ChannelEmail, Reason: "Email service not configured"}, res.Results[1])

	var rows []models.Notification
	require.NoError(t, svc.DB.Where("user_id = ?", "u1").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "New lead: Tata Projects", rows[0].Title)
	assert.Equal(t, "Lead Tata Projects for Customer", rows[0].Message)
	assert.Equal(t, models.PriorityNormal, rows[0].Priority)

	logs := logsFor(t, svc)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ChannelEmail, logs[0].Channel)
	assert.False(t, logs[0].Success)
	assert.Equal(t, "Email service not configured", logs[0].Error)
	assert.True(t, logs[1].Success)
}

func TestSend_ExpandsRolesAndRuleChannels(t *testing.T) {
	db := openTestDB(t)
	email := &fakeEmail{configured: true}
	sms := &fakeSMS{}
	rt := &fakeRealtime{online: map[string]bool{}}
	svc := NewNotificationService(db, email, sms, rt)
	seedEvent(t, svc, "job_assigned", true, []string{"operator"}, []string{"in_app", "email", "sms", "push"})

	op := &models.User{Name: "Ravi", Email: "ravi@asp.test", Phone: "9876543210", Role: models.RoleOperator, Enabled: true}
	noPhone := &models.User{Name: "Sita", Email: "sita@asp.test", Role: models.RoleOperator, Enabled: true}
	disabled := &models.User{Name: "Old", Email: "old@asp.test", Role: models.RoleOperator, Enabled: false}
	sales := &models.User{Name: "Amit", Email: "amit@asp.test", Role: models.RoleSales, Enabled: true}
	for _, u := range []*models.User{op, noPhone, disabled, sales} {
		require.NoError(t, db.Create(u).Error)
	}
	rt.online[op.ID] = true

	res, err := svc.Send(context.Background(), SendRequest{Type: "job_assigned"})
	require.NoError(t, err)
	require.Len(t, res.Results, 8)

	byKey := map[string]DeliveryResult{}
	for _, r := range res.Results {
		byKey[r.RecipientID+"/"+string(r.Channel)] = r
	}
	assert.True(t, byKey[op.ID+"/in_app"].Success)
	assert.True(t, byKey[op.ID+"/email"].Success)
	assert.Equal(t, "mail-1", byKey[op.ID+"/email"].MessageID)
	assert.True(t, byKey[op.ID+"/sms"].Success)
	assert.Equal(t, ReasonPushUnsupported, byKey[op.ID+"/push"].Reason)
	assert.Equal(t, ReasonNoPhone, byKey[noPhone.ID+"/sms"].Reason)
	assert.NotContains(t, byKey, disabled.ID+"/in_app")
	assert.NotContains(t, byKey, sales.ID+"/in_app")

	// enumeration order: recipients outer, channels inner
	assert.Equal(t, models.ChannelInApp, res.Results[0].Channel)
	assert.Equal(t, models.ChannelPush, res.Results[3].Channel)
	assert.Equal(t, res.Results[0].RecipientID, res.Results[3].RecipientID)

	assert.Equal(t, []string{op.ID}, rt.pushed)
	assert.Len(t, email.sent, 2)
	assert.Equal(t, []string{"9876543210: SMS Lead"}, sms.sent)
	assert.Len(t, logsFor(t, svc), 8)
}

func TestSend_NoActiveRule(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	seedEvent(t, svc, "deal_lost", false, nil, []string{"in_app"})

	res, err := svc.Send(context.Background(), SendRequest{Type: "deal_lost", Recipients: []Recipient{{ID: "u1"}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNoActiveRule, res.Reason)
	assert.Empty(t, logsFor(t, svc))
}

func TestSend_MissingTemplate(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)

	res, err := svc.Send(context.Background(), SendRequest{Type: "nothing", Recipients: []Recipient{{ID: "u1"}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNotificationTemplateMissing.Error(), res.Reason)

	_, err = svc.Send(context.Background(), SendRequest{})
	assert.ErrorIs(t, err, ErrInvalidNotification)
}

func TestSend_PreferenceUnknownChannelAndPanic(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), &fakeEmail{configured: true}, &fakeSMS{panic: true}, nil)
	seedEvent(t, svc, "lead_assigned", true, nil, nil)
	_, err := svc.UpdatePreferences("u1", models.NotificationPreference{InAppEnabled: true, EmailEnabled: false, SMSEnabled: true})
	require.NoError(t, err)

	res, err := svc.Send(context.Background(), SendRequest{
		Type:       "lead_assigned",
		Recipients: []Recipient{{ID: "u1", Email: "a@b.com", Phone: "9876543210"}},
		Channels:   []models.Channel{"email", "fax", "sms", "in_app"},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 4)
	assert.Equal(t, ReasonDisabled, res.Results[0].Reason)
	assert.Equal(t, ReasonUnknownChannel, res.Results[1].Reason)
	assert.False(t, res.Results[2].Success)
	assert.Contains(t, res.Results[2].Reason, "carrier exploded")
	assert.True(t, res.Results[3].Success)
}

func TestSend_EmailSenderErrorIsResult(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), &fakeEmail{configured: true, err: errors.New("550 mailbox unavailable")}, nil, nil)
	seedEvent(t, svc, "deal_won", true, nil, []string{"email"})

	res, err := svc.Send(context.Background(), SendRequest{Type: "deal_won", Recipients: []Recipient{{ID: "u1", Email: "a@b.com"}}})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.False(t, res.Success)
	assert.Equal(t, "550 mailbox unavailable", res.Results[0].Reason)

	res, err = svc.Send(context.Background(), SendRequest{Type: "deal_won", Recipients: []Recipient{{ID: "u2"}}})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoEmail, res.Results[0].Reason)
}

func TestSend_EmailFallbackEscapesValues(t *testing.T) {
	email := &fakeEmail{configured: true}
	svc := NewNotificationService(openTestDB(t), email, nil, nil)
	seedEvent(t, svc, "lead_created", true, nil, []string{"email"})

	res, err := svc.Send(context.Background(), SendRequest{
		Type:       "lead_created",
		Recipients: []Recipient{{ID: "u1", Email: "a@b.com"}},
		Data:       map[string]interface{}{"lead": map[string]interface{}{"name": "<img src=x onerror=alert(1)>"}},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, email.sent, 1)
	body := email.sent[0].HTMLBody
	assert.Contains(t, body, "&lt;img")
	assert.NotContains(t, body, "<img")
}

func TestSend_ScheduleAtFuture(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	at := time.Now().Add(time.Hour)

	res, err := svc.Send(context.Background(), SendRequest{Type: "lead_created", ScheduleAt: &at, Recipients: []Recipient{{ID: "u1"}}})
	require.NoError(t, err)
	assert.True(t, res.Scheduled)

	var row models.ScheduledNotification
	require.NoError(t, svc.DB.First(&row, "id = ?", res.ScheduledID).Error)
	assert.Equal(t, models.ScheduleStatusPending, row.Status)
	assert.Equal(t, "lead_created", row.Type)
	assert.NotContains(t, string(row.Payload), "schedule_at")
	assert.Contains(t, string(row.Payload), `"u1"`)
}

func TestSend_ProviderBroadcast(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	var mu sync.Mutex
	var posted []string
	svc.sendURL = func(url, message string) error {
		mu.Lock()
		defer mu.Unlock()
		posted = append(posted, url+"|"+message)
		if url == "slack://broken" {
			return errors.New("401")
		}
		return nil
	}
	seedEvent(t, svc, "deal_won", true, nil, []string{"in_app"})
	for _, p := range []*models.NotificationProvider{
		{Name: "sales", Type: "slack", URL: "slack://token@channel", Enabled: true, Events: []string{"deal_won"}},
		{Name: "broken", Type: "slack", URL: "slack://broken", Enabled: true},
		{Name: "ops", Type: "discord", URL: "https://discord.com/api/webhooks/123/abc", Enabled: true, Events: []string{"job_assigned"}},
		{Name: "off", Type: "slack", URL: "slack://off", Enabled: false},
	} {
		require.NoError(t, svc.CreateProvider(p))
	}

	res, err := svc.Send(context.Background(), SendRequest{Type: "deal_won", Recipients: []Recipient{{ID: "u1"}}})
	require.NoError(t, err)
	require.Len(t, res.Broadcasts, 2)
	ok := 0
	for _, b := range res.Broadcasts {
		assert.Equal(t, models.ChannelProvider, b.Channel)
		if b.Success {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, posted, 2)
	assert.NotContains(t, posted, "slack://off|New lead: Tata Projects")

	var failed int64
	require.NoError(t, svc.DB.Model(&models.NotificationLog{}).Where("channel = ? AND success = ?", models.ChannelProvider, false).Count(&failed).Error)
	assert.Equal(t, int64(1), failed)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "discord://abc@123", normalizeURL("discord", "https://discord.com/api/webhooks/123/abc"))
	assert.Equal(t, "slack://x", normalizeURL("slack", "slack://x"))
}

func TestValidateWebhookURL(t *testing.T) {
	orig := lookupIP
	defer func() { lookupIP = orig }()
	lookupIP = func(host string) ([]net.IP, error) {
		if host == "internal.example" {
			return []net.IP{net.ParseIP("10.0.0.5")}, nil
		}
		return []net.IP{net.ParseIP("93.184.216.34")}, nil
	}

	_, err := validateWebhookURL("https://hooks.example.com/x")
	assert.NoError(t, err)
	_, err = validateWebhookURL("https://internal.example/x")
	assert.Error(t, err)
	_, err = validateWebhookURL("ftp://hooks.example.com")
	assert.Error(t, err)
	_, err = validateWebhookURL("http://localhost:8080/hook")
	assert.NoError(t, err)
}
