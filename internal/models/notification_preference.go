package models

import "time"

// NotificationPreference is a user's opt-out switches per channel. A user
// without a row receives everything.
type NotificationPreference struct {
	UserID       string    `gorm:"primaryKey" json:"user_id"`
	InAppEnabled bool      `json:"in_app_enabled"`
	EmailEnabled bool      `json:"email_enabled"`
	SMSEnabled   bool      `gorm:"column:sms_enabled" json:"sms_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultPreference returns the all-enabled preference for a user.
func DefaultPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:       userID,
		InAppEnabled: true,
		EmailEnabled: true,
		SMSEnabled:   true,
		PushEnabled:  true,
	}
}

// Allows reports whether the user accepts deliveries on the channel.
func (p NotificationPreference) Allows(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return p.InAppEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	}
	return true
}
