package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/metrics"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

const (
	sweepLockKey = "crm:notifications:sweep"
	sweepLockTTL = 55 * time.Second
	sweepBatch   = 100

	// claims older than this belong to a sweep that died mid-dispatch
	staleClaimAfter = 10 * time.Minute
)

// ErrSweepBusy is returned by Sweep when another sweep holds the lock.
var ErrSweepBusy = errors.New("notification sweep already running")

// NotificationScheduler periodically dispatches scheduled notifications
// whose time has come. A nil Redis client limits the overlap guard to this
// process.
type NotificationScheduler struct {
	Notifications *NotificationService
	Cron          *cron.Cron
	Redis         *redis.Client

	running atomic.Bool
	now     func() time.Time
}

func NewNotificationScheduler(svc *NotificationService, rdb *redis.Client) *NotificationScheduler {
	return &NotificationScheduler{
		Notifications: svc,
		Cron:          cron.New(),
		Redis:         rdb,
		now:           time.Now,
	}
}

// Start registers the sweep under spec (e.g. "@every 60s") and starts cron.
func (s *NotificationScheduler) Start(spec string) error {
	_, err := s.Cron.AddFunc(spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil && !errors.Is(err, ErrSweepBusy) {
			logger.Component("scheduler").WithError(err).Error("notification sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.Cron.Start()
	logger.Component("scheduler").WithField("spec", spec).Info("notification sweep scheduled")
	return nil
}

// Stop halts cron and waits for a running sweep to finish.
func (s *NotificationScheduler) Stop() {
	<-s.Cron.Stop().Done()
}

// Sweep dispatches every pending notification due now and returns how many
// were processed.
func (s *NotificationScheduler) Sweep(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.IncSweep("skipped")
		return 0, ErrSweepBusy
	}
	defer s.running.Store(false)

	release, ok, err := s.lock(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		metrics.IncSweep("skipped")
		return 0, ErrSweepBusy
	}
	defer release()
	metrics.IncSweep("ran")

	db := s.Notifications.DB
	if err := s.reclaimStale(ctx); err != nil {
		return 0, err
	}

	var due []models.ScheduledNotification
	err = db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.ScheduleStatusPending, s.now()).
		Order("scheduled_at asc").
		Limit(sweepBatch).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("load due notifications: %w", err)
	}

	processed := 0
	for _, row := range due {
		claimed := db.Model(&models.ScheduledNotification{}).
			Where("id = ? AND status = ?", row.ID, models.ScheduleStatusPending).
			Updates(map[string]interface{}{"status": models.ScheduleStatusProcessing, "updated_at": s.now()})
		if claimed.Error != nil {
			return processed, fmt.Errorf("claim scheduled notification: %w", claimed.Error)
		}
		if claimed.RowsAffected != 1 {
			continue
		}
		s.dispatch(ctx, row)
		processed++
	}
	if processed > 0 {
		logger.Component("scheduler").WithField("processed", processed).Info("scheduled notifications dispatched")
	}
	return processed, nil
}

// reclaimStale returns abandoned processing rows to pending so this sweep
// picks them up again.
func (s *NotificationScheduler) reclaimStale(ctx context.Context) error {
	res := s.Notifications.DB.WithContext(ctx).Model(&models.ScheduledNotification{}).
		Where("status = ? AND updated_at < ?", models.ScheduleStatusProcessing, s.now().Add(-staleClaimAfter)).
		Updates(map[string]interface{}{"status": models.ScheduleStatusPending, "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("reclaim stale notifications: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.Component("scheduler").WithField("count", res.RowsAffected).Warn("reclaimed stale scheduled notifications")
	}
	return nil
}

func (s *NotificationScheduler) dispatch(ctx context.Context, row models.ScheduledNotification) {
	status, reason := models.ScheduleStatusSent, ""

	var req SendRequest
	if err := json.Unmarshal(row.Payload, &req); err != nil {
		status, reason = models.ScheduleStatusFailed, "decode payload: "+err.Error()
	} else {
		req.ScheduleAt = nil
		if req.Type == "" {
			req.Type = row.Type
		}
		res, err := s.Notifications.Send(ctx, req)
		switch {
		case err != nil:
			status, reason = models.ScheduleStatusFailed, err.Error()
		case !res.Success:
			status, reason = models.ScheduleStatusFailed, firstReason(res)
		}
	}

	done := s.now()
	err := s.Notifications.DB.Model(&models.ScheduledNotification{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":       status,
		"error":        reason,
		"processed_at": &done,
	}).Error
	fields := logrus.Fields{"id": row.ID, "type": row.Type, "status": status}
	if err != nil {
		logger.Component("scheduler").WithError(err).WithFields(fields).Error("failed to record scheduled notification outcome")
		return
	}
	if status == models.ScheduleStatusFailed {
		logger.Component("scheduler").WithFields(fields).WithField("reason", reason).Warn("scheduled notification failed")
	}
}

func firstReason(res *SendResult) string {
	if res.Reason != "" {
		return res.Reason
	}
	for _, r := range res.Results {
		if r.Reason != "" {
			return r.Reason
		}
	}
	return "no recipients"
}

// lock takes the cluster-wide sweep lock. The release func only deletes the
// key while this process still owns it.
func (s *NotificationScheduler) lock(ctx context.Context) (func(), bool, error) {
	if s.Redis == nil {
		return func() {}, true, nil
	}
	token := uuid.New().String()
	ok, err := s.Redis.SetNX(ctx, sweepLockKey, token, sweepLockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := releaseScript.Run(context.Background(), s.Redis, []string{sweepLockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logger.Component("scheduler").WithError(err).Warn("failed to release sweep lock")
		}
	}, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
