package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Element is one renderable block of a quotation template. Content and Style
// are free-form; their shape depends on Type.
type Element struct {
	ID      string                 `json:"id,omitempty"`
	Type    string                 `json:"type"`
	Content map[string]interface{} `json:"content,omitempty"`
	Style   map[string]interface{} `json:"style,omitempty"`
	Visible *bool                  `json:"visible,omitempty"`
	Order   *int                   `json:"order,omitempty"`
	// Columns toggles items table columns by key (description, quantity, ...).
	Columns map[string]bool `json:"columns,omitempty"`
}

// IsVisible treats a missing flag as visible.
func (e Element) IsVisible() bool {
	return e.Visible == nil || *e.Visible
}

// QuotationTemplate is a stored document layout: an ordered list of elements
// plus theme and style metadata. At most one active row is the default.
type QuotationTemplate struct {
	ID          string                       `gorm:"primaryKey" json:"id"`
	Name        string                       `gorm:"size:200;not null" json:"name"`
	Description string                       `json:"description"`
	Theme       string                       `gorm:"default:'classic'" json:"theme"`
	Elements    datatypes.JSONSlice[Element] `json:"elements"`
	Styles      datatypes.JSONMap            `json:"styles"`
	Layout      datatypes.JSONMap            `json:"layout"`
	IsDefault   bool                         `gorm:"uniqueIndex:idx_quotation_templates_single_default,where:is_default" json:"is_default"`
	IsActive    bool                         `gorm:"default:true;index" json:"is_active"`
	Version     int                          `gorm:"default:1" json:"version"`
	CreatedBy   string                       `json:"created_by,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

func (QuotationTemplate) TableName() string {
	return "quotation_templates"
}

func (t *QuotationTemplate) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return
}
