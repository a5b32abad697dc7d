package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

func seedInbox(t *testing.T, svc *NotificationService, userID string, n int) []models.Notification {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]models.Notification, n)
	for i := 0; i < n; i++ {
		out[i] = models.Notification{UserID: userID, Title: "n", Type: "lead_created", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, svc.DB.Create(&out[i]).Error)
	}
	return out
}

func TestInbox_ListAndRead(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	rows := seedInbox(t, svc, "u1", 3)
	seedInbox(t, svc, "u2", 2)

	list, total, err := svc.List("u1", false, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, rows[2].ID, list[0].ID)

	require.NoError(t, svc.MarkAsRead("u1", rows[0].ID))
	assert.ErrorIs(t, svc.MarkAsRead("u2", rows[1].ID), ErrNotificationNotFound)

	var read models.Notification
	require.NoError(t, svc.DB.First(&read, "id = ?", rows[0].ID).Error)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	count, err := svc.UnreadCount("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	list, total, err = svc.List("u1", true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	changed, err := svc.MarkAllAsRead("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	count, err = svc.UnreadCount("u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.UnreadCount("u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestInbox_HidesExpired(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := models.Notification{UserID: "u1", Title: "old", Type: "lead_created", ExpiresAt: &past}
	fresh := models.Notification{UserID: "u1", Title: "soon", Type: "lead_created", ExpiresAt: &future}
	forever := models.Notification{UserID: "u1", Title: "kept", Type: "lead_created"}
	for _, n := range []*models.Notification{&expired, &fresh, &forever} {
		require.NoError(t, svc.DB.Create(n).Error)
	}

	list, total, err := svc.List("u1", false, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	for _, n := range list {
		assert.NotEqual(t, expired.ID, n.ID)
	}

	count, err := svc.UnreadCount("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	svc.now = func() time.Time { return future.Add(time.Minute) }
	count, err = svc.UnreadCount("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPreferences(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)

	pref, err := svc.GetPreferences("u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreference("u1"), pref)

	_, err = svc.UpdatePreferences("u1", models.NotificationPreference{InAppEnabled: true, SMSEnabled: true})
	require.NoError(t, err)
	_, err = svc.UpdatePreferences("u1", models.NotificationPreference{InAppEnabled: true, EmailEnabled: true})
	require.NoError(t, err)

	pref, err = svc.GetPreferences("u1")
	require.NoError(t, err)
	assert.True(t, pref.Allows(models.ChannelEmail))
	assert.False(t, pref.Allows(models.ChannelSMS))
	assert.False(t, pref.Allows(models.ChannelPush))

	var rows int64
	require.NoError(t, svc.DB.Model(&models.NotificationPreference{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestAnalytics(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	svc.audit("lead_created", DeliveryResult{RecipientID: "u1", Channel: models.ChannelInApp, Success: true})
	svc.audit("lead_created", DeliveryResult{RecipientID: "u1", Channel: models.ChannelEmail, Reason: ReasonEmailNotConfigured})
	svc.audit("deal_won", DeliveryResult{RecipientID: "u2", Channel: models.ChannelEmail, Success: true})
	rows := seedInbox(t, svc, "u1", 2)
	require.NoError(t, svc.MarkAsRead("u1", rows[0].ID))

	a, err := svc.Analytics(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.Attempts)
	assert.Equal(t, int64(2), a.Successful)
	assert.Equal(t, ChannelStats{Sent: 1, Failed: 1}, a.ByChannel["email"])
	assert.Equal(t, ChannelStats{Sent: 1}, a.ByChannel["in_app"])
	assert.Equal(t, int64(2), a.ByType["lead_created"])
	assert.Equal(t, int64(2), a.InApp)
	assert.Equal(t, int64(1), a.Read)
	assert.InDelta(t, 0.5, a.ReadRatio, 1e-9)
}

func TestRulesCRUD(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)

	err := svc.CreateRule(&models.NotificationRule{EventType: "deal_won", Channels: []string{"pigeon"}})
	assert.ErrorIs(t, err, ErrInvalidChannel)
	assert.Error(t, svc.CreateRule(&models.NotificationRule{}))

	rule := &models.NotificationRule{EventType: "deal_won", UserRoles: []string{"admin"}, Channels: []string{"in_app"}, IsActive: true}
	require.NoError(t, svc.CreateRule(rule))

	rule.IsActive = false
	rule.Channels = []string{"in_app", "email"}
	require.NoError(t, svc.UpdateRule(rule))
	got, err := svc.GetRule(rule.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, []string{"in_app", "email"}, []string(got.Channels))

	assert.ErrorIs(t, svc.UpdateRule(&models.NotificationRule{ID: "missing", EventType: "x"}), ErrRuleNotFound)
	require.NoError(t, svc.DeleteRule(rule.ID))
	_, err = svc.GetRule(rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, svc.DeleteRule(rule.ID), ErrRuleNotFound)
}

func TestTemplatesCRUD(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	assert.Error(t, svc.CreateTemplate(&models.NotificationTemplate{}))

	tmpl := &models.NotificationTemplate{Type: "deal_won", SubjectTemplate: "Won"}
	require.NoError(t, svc.CreateTemplate(tmpl))
	tmpl.SubjectTemplate = "Won {{deal.title}}"
	require.NoError(t, svc.UpdateTemplate(tmpl))

	got, err := svc.GetTemplate(tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Won {{deal.title}}", got.SubjectTemplate)

	require.NoError(t, svc.DeleteTemplate(tmpl.ID))
	_, err = svc.GetTemplate(tmpl.ID)
	assert.ErrorIs(t, err, ErrNotificationTemplateNotFound)
}

func TestInitDefaults_Idempotent(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	require.NoError(t, svc.InitDefaults())

	rules, err := svc.ListRules()
	require.NoError(t, err)
	require.Len(t, rules, len(defaultEvents))
	for _, r := range rules {
		assert.True(t, r.IsActive, r.EventType)
	}

	// admin edits survive a restart
	rules[0].IsActive = false
	require.NoError(t, svc.UpdateRule(&rules[0]))
	require.NoError(t, svc.InitDefaults())

	again, err := svc.ListRules()
	require.NoError(t, err)
	assert.Len(t, again, len(defaultEvents))
	assert.False(t, again[0].IsActive)

	templates, err := svc.ListTemplates()
	require.NoError(t, err)
	assert.Len(t, templates, len(defaultEvents))
}

func TestProvidersCRUD(t *testing.T) {
	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	var sent []string
	svc.sendURL = func(url, message string) error {
		sent = append(sent, url)
		return nil
	}
	assert.Error(t, svc.CreateProvider(&models.NotificationProvider{Name: "x"}))

	p := &models.NotificationProvider{Name: "ops", Type: "discord", URL: "https://discord.com/api/webhooks/1/tok", Enabled: true}
	require.NoError(t, svc.CreateProvider(p))
	require.NoError(t, svc.TestProvider(*p))
	assert.Equal(t, []string{"discord://tok@1"}, sent)

	p.Enabled = false
	require.NoError(t, svc.UpdateProvider(p))
	got, err := svc.GetProvider(p.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	list, err := svc.ListProviders()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteProvider(p.ID))
	_, err = svc.GetProvider(p.ID)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}
