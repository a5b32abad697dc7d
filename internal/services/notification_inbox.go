package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

const maxInboxPage = 100

// List returns a user's inbox, newest first, and the total matching rows.
func (s *NotificationService) List(userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > maxInboxPage {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	scope := func() *gorm.DB {
		q := s.live(userID)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}
	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := []models.Notification{}
	if err := scope().Order("created_at desc").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// MarkAsRead flags one of the user's notifications as read.
func (s *NotificationService) MarkAsRead(userID, id string) error {
	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead flags every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllAsRead(userID string) (int64, error) {
	res := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	return res.RowsAffected, res.Error
}

func (s *NotificationService) UnreadCount(userID string) (int64, error) {
	var n int64
	err := s.live(userID).Where("is_read = ?", false).Count(&n).Error
	return n, err
}

// live scopes to the user's notifications that have not expired.
func (s *NotificationService) live(userID string) *gorm.DB {
	return s.DB.Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Where("(expires_at IS NULL OR expires_at > ?)", s.now())
}

// GetPreferences returns the stored preference or the all-enabled default.
func (s *NotificationService) GetPreferences(userID string) (models.NotificationPreference, error) {
	var pref models.NotificationPreference
	res := s.DB.Where("user_id = ?", userID).Limit(1).Find(&pref)
	if res.Error != nil {
		return pref, res.Error
	}
	if res.RowsAffected == 0 {
		return models.DefaultPreference(userID), nil
	}
	return pref, nil
}

// UpdatePreferences upserts the user's channel switches.
func (s *NotificationService) UpdatePreferences(userID string, pref models.NotificationPreference) (models.NotificationPreference, error) {
	pref.UserID = userID
	pref.UpdatedAt = s.now()
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"in_app_enabled", "email_enabled", "sms_enabled", "push_enabled", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return pref, fmt.Errorf("save preferences: %w", err)
	}
	return pref, nil
}

// ChannelStats counts delivery attempts for one channel.
type ChannelStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

// NotificationAnalytics summarises deliveries and inbox engagement.
type NotificationAnalytics struct {
	Since      time.Time               `json:"since"`
	Attempts   int64                   `json:"attempts"`
	Successful int64                   `json:"successful"`
	ByChannel  map[string]ChannelStats `json:"by_channel"`
	ByType     map[string]int64        `json:"by_type"`
	InApp      int64                   `json:"in_app_total"`
	Read       int64                   `json:"in_app_read"`
	ReadRatio  float64                 `json:"read_ratio"`
}

// Analytics aggregates notification_logs and inbox rows created since.
func (s *NotificationService) Analytics(since time.Time) (*NotificationAnalytics, error) {
	out := &NotificationAnalytics{
		Since:     since,
		ByChannel: map[string]ChannelStats{},
		ByType:    map[string]int64{},
	}

	var byChannel []struct {
		Channel string
		Success bool
		Count   int64
	}
	err := s.DB.Model(&models.NotificationLog{}).
		Select("channel, success, count(*) as count").
		Where("created_at >= ?", since).
		Group("channel, success").
		Scan(&byChannel).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate deliveries: %w", err)
	}
	for _, row := range byChannel {
		st := out.ByChannel[row.Channel]
		if row.Success {
			st.Sent += row.Count
			out.Successful += row.Count
		} else {
			st.Failed += row.Count
		}
		out.ByChannel[row.Channel] = st
		out.Attempts += row.Count
	}

	var byType []struct {
		Type  string
		Count int64
	}
	err = s.DB.Model(&models.NotificationLog{}).
		Select("type, count(*) as count").
		Where("created_at >= ?", since).
		Group("type").
		Scan(&byType).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate event types: %w", err)
	}
	for _, row := range byType {
		out.ByType[row.Type] = row.Count
	}

	if err := s.DB.Model(&models.Notification{}).Where("created_at >= ?", since).Count(&out.InApp).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Notification{}).Where("created_at >= ? AND is_read = ?", since, true).Count(&out.Read).Error; err != nil {
		return nil, err
	}
	if out.InApp > 0 {
		out.ReadRatio = float64(out.Read) / float64(out.InApp)
	}
	return out, nil
}
