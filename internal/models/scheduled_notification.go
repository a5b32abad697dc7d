package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusProcessing ScheduleStatus = "processing"
	ScheduleStatusSent       ScheduleStatus = "sent"
	ScheduleStatusFailed     ScheduleStatus = "failed"
)

// ScheduledNotification stores a deferred send request until the sweep picks it up.
type ScheduledNotification struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	Type        string         `gorm:"size:64" json:"type"`
	Payload     datatypes.JSON `json:"payload"`
	ScheduledAt time.Time      `gorm:"index" json:"scheduled_at"`
	Status      ScheduleStatus `gorm:"size:16;index;default:'pending'" json:"status"`
	Error       string         `json:"error,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (s *ScheduledNotification) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = ScheduleStatusPending
	}
	return
}
