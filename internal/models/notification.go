package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel is a delivery medium for a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	// ChannelProvider marks team broadcasts to external chat providers in the audit log.
	ChannelProvider Channel = "provider"
)

// Priority of a notification as shown in the inbox.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is an in-app inbox row. It is only ever mutated by mark-read.
type Notification struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	UserID        string     `gorm:"index;not null" json:"user_id"`
	Title         string     `gorm:"size:255" json:"title"`
	Message       string     `json:"message"`
	Type          string     `gorm:"size:64;index" json:"type"`
	IsRead        bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	Priority      Priority   `gorm:"size:16;default:'normal'" json:"priority"`
	ReferenceID   string     `json:"reference_id,omitempty"`
	ReferenceType string     `json:"reference_type,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	return
}
