package models

import "time"

// Setting is a key/value configuration row grouped by category (smtp, company, ...).
type Setting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"uniqueIndex;size:128"`
	Value     string    `json:"value"`
	Type      string    `json:"type" gorm:"size:16"`
	Category  string    `json:"category" gorm:"size:32;index"`
	UpdatedAt time.Time `json:"updated_at"`
}
