package models

import (
	"time"
)

// OrderItemStatus marks whether a line is still being fulfilled or was
// superseded by an invoice change after scan evidence existed.
type OrderItemStatus string

const (
	OrderItemActive   OrderItemStatus = "active"
	OrderItemReplaced OrderItemStatus = "replaced" // Kept for audit, never hard-deleted
)

// OrderItem is one purchased line of an order. Created at invoice intake
// or by reconciliation against the external invoicing system.
type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"index;not null" json:"order_id"`

	// External product-line reference on the source invoice
	InvoiceLineID *int64 `gorm:"index" json:"invoice_line_id,omitempty"`
	ProductCode   string `gorm:"index" json:"product_code"`

	Name      string  `gorm:"not null" json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`

	Status OrderItemStatus `gorm:"default:active;index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Verification *ItemVerification `gorm:"foreignKey:OrderItemID" json:"verification,omitempty"`
}

// TableName specifies the table name for OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// IsActive reports whether the line still counts toward packing progress
func (i *OrderItem) IsActive() bool {
	return i.Status == OrderItemActive
}

// ScannedCount returns the recorded scan progress, zero when no
// verification row exists yet.
func (i *OrderItem) ScannedCount() float64 {
	if i.Verification == nil {
		return 0
	}
	return i.Verification.ScannedCount
}
