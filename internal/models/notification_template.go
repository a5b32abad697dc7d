package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationTemplate holds the per-channel message variants for one event
// type. Every field is a {{placeholder}} string.
type NotificationTemplate struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Type            string    `gorm:"size:64;uniqueIndex;not null" json:"type"`
	SubjectTemplate string    `json:"subject_template"`
	MessageTemplate string    `json:"message_template"`
	EmailTemplate   string    `json:"email_template"`
	SMSTemplate     string    `gorm:"column:sms_template" json:"sms_template"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t *NotificationTemplate) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return
}
