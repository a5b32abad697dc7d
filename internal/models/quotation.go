package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is the client a quotation is addressed to.
type Customer struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	GSTNumber string    `gorm:"column:gst_number" json:"gst_number"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Quotation is a priced crane-rental offer sent to a customer.
type Quotation struct {
	ID         string          `gorm:"primaryKey" json:"id"`
	Number     string          `gorm:"uniqueIndex;size:64" json:"number"`
	CustomerID string          `gorm:"index" json:"customer_id"`
	Customer   *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	DealID     string          `json:"deal_id,omitempty"`
	Status     string          `gorm:"size:32;default:'draft'" json:"status"`
	Items      []QuotationItem `gorm:"foreignKey:QuotationID" json:"items"`
	Subtotal   float64         `json:"subtotal"`
	Discount   float64         `json:"discount"`
	TaxRate    float64         `json:"tax_rate"`
	TaxAmount  float64         `json:"tax_amount"`
	Total      float64         `json:"total"`
	Currency   string          `gorm:"size:3;default:'INR'" json:"currency"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	Terms      string          `json:"terms"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return
}

// QuotationItem is one priced line (crane, operator, mobilisation, ...).
type QuotationItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	QuotationID string  `gorm:"index" json:"quotation_id"`
	Position    int     `json:"position"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

// LineAmount is the stored amount, or quantity x rate when none was stored.
func (i QuotationItem) LineAmount() float64 {
	if i.Amount != 0 {
		return i.Amount
	}
	return i.Quantity * i.Rate
}
