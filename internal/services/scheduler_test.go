package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

func newScheduler(t *testing.T) (*NotificationScheduler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewNotificationService(openTestDB(t), nil, nil, nil)
	require.NoError(t, svc.InitDefaults())
	return NewNotificationScheduler(svc, rdb), mr
}

func storeScheduled(t *testing.T, s *NotificationScheduler, req SendRequest, at time.Time) *models.ScheduledNotification {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	row := &models.ScheduledNotification{Type: req.Type, Payload: payload, ScheduledAt: at}
	require.NoError(t, s.Notifications.DB.Create(row).Error)
	return row
}

func reload(t *testing.T, s *NotificationScheduler, id string) models.ScheduledNotification {
	t.Helper()
	var row models.ScheduledNotification
	require.NoError(t, s.Notifications.DB.First(&row, "id = ?", id).Error)
	return row
}

func TestSweep_DispatchesDueRows(t *testing.T) {
	s, mr := newScheduler(t)
	now := time.Now()

	due := storeScheduled(t, s, SendRequest{Type: "lead_created", Recipients: []Recipient{{ID: "u1"}}, Channels: []models.Channel{models.ChannelInApp}}, now.Add(-time.Minute))
	later := storeScheduled(t, s, SendRequest{Type: "lead_created", Recipients: []Recipient{{ID: "u1"}}}, now.Add(time.Hour))
	bad := storeScheduled(t, s, SendRequest{Type: "unknown_event", Recipients: []Recipient{{ID: "u1"}}}, now.Add(-time.Minute))

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	row := reload(t, s, due.ID)
	assert.Equal(t, models.ScheduleStatusSent, row.Status)
	assert.NotNil(t, row.ProcessedAt)

	row = reload(t, s, bad.ID)
	assert.Equal(t, models.ScheduleStatusFailed, row.Status)
	assert.Equal(t, ErrNotificationTemplateMissing.Error(), row.Error)

	assert.Equal(t, models.ScheduleStatusPending, reload(t, s, later.ID).Status)

	count, err := s.Notifications.UnreadCount("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// lock released after the sweep
	assert.False(t, mr.Exists(sweepLockKey))

	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweep_SkipsWhenLockHeld(t *testing.T) {
	s, mr := newScheduler(t)
	require.NoError(t, mr.Set(sweepLockKey, "other-instance"))
	row := storeScheduled(t, s, SendRequest{Type: "lead_created", Recipients: []Recipient{{ID: "u1"}}}, time.Now().Add(-time.Minute))

	n, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrSweepBusy)
	assert.Zero(t, n)
	assert.Equal(t, models.ScheduleStatusPending, reload(t, s, row.ID).Status)

	v, err := mr.Get(sweepLockKey)
	require.NoError(t, err)
	assert.Equal(t, "other-instance", v)
}

func TestSweep_SkipsWhenAlreadyRunning(t *testing.T) {
	s, _ := newScheduler(t)
	s.running.Store(true)

	_, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrSweepBusy)
}

func TestSweep_WithoutRedis(t *testing.T) {
	s, _ := newScheduler(t)
	s.Redis = nil
	row := storeScheduled(t, s, SendRequest{Type: "deal_won", Recipients: []Recipient{{ID: "u9"}}, Channels: []models.Channel{models.ChannelInApp}}, time.Now().Add(-time.Second))

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.ScheduleStatusSent, reload(t, s, row.ID).Status)
}

func TestSweep_BadPayload(t *testing.T) {
	s, _ := newScheduler(t)
	row := &models.ScheduledNotification{Type: "deal_won", Payload: []byte(`"not an object"`), ScheduledAt: time.Now().Add(-time.Second)}
	require.NoError(t, s.Notifications.DB.Create(row).Error)

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)
	got := reload(t, s, row.ID)
	assert.Equal(t, models.ScheduleStatusFailed, got.Status)
	assert.Contains(t, got.Error, "decode payload")
}

func TestSweep_ReclaimsStaleProcessingRows(t *testing.T) {
	s, _ := newScheduler(t)
	now := time.Now()
	req := SendRequest{Type: "lead_created", Recipients: []Recipient{{ID: "u1"}}, Channels: []models.Channel{models.ChannelInApp}}

	stale := storeScheduled(t, s, req, now.Add(-time.Hour))
	busy := storeScheduled(t, s, req, now.Add(-time.Hour))
	db := s.Notifications.DB
	require.NoError(t, db.Model(&models.ScheduledNotification{}).Where("id = ?", stale.ID).
		UpdateColumns(map[string]interface{}{"status": models.ScheduleStatusProcessing, "updated_at": now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Model(&models.ScheduledNotification{}).Where("id = ?", busy.ID).
		UpdateColumns(map[string]interface{}{"status": models.ScheduleStatusProcessing, "updated_at": now}).Error)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.ScheduleStatusSent, reload(t, s, stale.ID).Status)
	assert.Equal(t, models.ScheduleStatusProcessing, reload(t, s, busy.ID).Status)
}

func TestScheduler_StartRegistersEntry(t *testing.T) {
	s, _ := newScheduler(t)
	require.NoError(t, s.Start("@every 60s"))
	defer s.Stop()
	assert.Len(t, s.Cron.Entries(), 1)

	assert.Error(t, NewNotificationScheduler(s.Notifications, nil).Start("not a spec"))
}
