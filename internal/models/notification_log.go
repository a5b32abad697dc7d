package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationLog is the audit row written for every channel attempt.
type NotificationLog struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Type        string    `gorm:"size:64;index" json:"type"`
	Channel     Channel   `gorm:"size:16;index" json:"channel"`
	RecipientID string    `gorm:"index" json:"recipient_id"`
	Success     bool      `gorm:"index" json:"success"`
	MessageID   string    `json:"message_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (l *NotificationLog) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return
}
