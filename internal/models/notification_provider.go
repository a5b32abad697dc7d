package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationProvider is a team chat destination (Slack, Discord, Teams, ...)
// addressed by a shoutrrr URL. Events selects which event types it receives;
// an empty list means all of them.
type NotificationProvider struct {
	ID        string                      `gorm:"primaryKey" json:"id"`
	Name      string                      `json:"name"`
	Type      string                      `json:"type"` // slack, discord, teams, telegram, generic
	URL       string                      `json:"url"`
	Events    datatypes.JSONSlice[string] `json:"events"`
	Enabled   bool                        `json:"enabled"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (n *NotificationProvider) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

// Wants reports whether the provider subscribes to eventType.
func (n *NotificationProvider) Wants(eventType string) bool {
	if len(n.Events) == 0 {
		return true
	}
	for _, e := range n.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
