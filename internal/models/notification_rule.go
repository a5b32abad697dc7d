package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationRule decides who receives an event and over which channels.
// There is one rule per event type.
type NotificationRule struct {
	ID        string                      `gorm:"primaryKey" json:"id"`
	EventType string                      `gorm:"size:64;uniqueIndex;not null" json:"event_type"`
	UserRoles datatypes.JSONSlice[string] `json:"user_roles"`
	Channels  datatypes.JSONSlice[string] `json:"channels"`
	// Conditions is stored for the admin UI; dispatch does not evaluate it.
	Conditions datatypes.JSONMap `json:"conditions"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (r *NotificationRule) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
