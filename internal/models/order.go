package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus defines the fulfillment stage of an order
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"       // Invoice captured, not yet picked
	OrderStatusPicking     OrderStatus = "picking"       // Stock being pulled
	OrderStatusPacking     OrderStatus = "packing"       // In the packing area
	OrderStatusReadyToShip OrderStatus = "ready_to_ship" // Packed and verified
	OrderStatusShipped     OrderStatus = "shipped"       // Handed to courier
	OrderStatusDelivered   OrderStatus = "delivered"     // Confirmed by customer
	OrderStatusCancelled   OrderStatus = "cancelled"     // Cancelled
)

// PackagingStatus defines the packing-area state of an order.
// The empty value means the order has never entered packing.
type PackagingStatus string

const (
	PackagingNone            PackagingStatus = ""
	PackagingInProgress      PackagingStatus = "in_progress"
	PackagingPaused          PackagingStatus = "paused"
	PackagingBlockedFaltante PackagingStatus = "blocked_faltante" // Missing stock
	PackagingBlockedNovedad  PackagingStatus = "blocked_novedad"  // Incident reported
	PackagingCompleted       PackagingStatus = "completed"
	PackagingRequiresReview  PackagingStatus = "requires_review" // Invoice changed mid-packing
)

// Valid reports whether the value is a known packaging status
func (s PackagingStatus) Valid() bool {
	switch s {
	case PackagingNone, PackagingInProgress, PackagingPaused, PackagingBlockedFaltante,
		PackagingBlockedNovedad, PackagingCompleted, PackagingRequiresReview:
		return true
	}
	return false
}

// IsReleaseStatus reports whether a lock holder may hand off the order with this status
func (s PackagingStatus) IsReleaseStatus() bool {
	switch s {
	case PackagingPaused, PackagingBlockedFaltante, PackagingBlockedNovedad:
		return true
	}
	return false
}

// Order represents a unit of fulfillment created at invoice intake.
// The packing lock is embedded on the row and mutated only through
// atomic conditional updates (see internal/packing).
type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;not null" json:"order_number"`

	// External invoicing reference (system of record for sold items)
	InvoiceID     *int64 `gorm:"index" json:"invoice_id,omitempty"`
	InvoiceNumber string `gorm:"index" json:"invoice_number"`

	// Customer snapshot from the invoice
	CustomerName  string `gorm:"index" json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	Status          OrderStatus     `gorm:"default:pending;index" json:"status"`
	PackagingStatus PackagingStatus `gorm:"index" json:"packaging_status"`

	// Packing lock fields. Invariant: at most one non-null, unexpired holder.
	PackingHolder      *string    `gorm:"index" json:"packing_holder,omitempty"`
	PackingHeartbeatAt *time.Time `json:"packing_heartbeat_at,omitempty"`
	PackingExpiresAt   *time.Time `json:"packing_expires_at,omitempty"`
	PackingLockReason  string     `json:"packing_lock_reason,omitempty"`

	Notes    string         `gorm:"type:text" json:"notes"`
	Metadata datatypes.JSON `json:"metadata"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate generates order number before creating
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderNumber == "" {
		o.OrderNumber = generateOrderNumber("PED")
	}
	return nil
}

// generateOrderNumber creates a unique order number
func generateOrderNumber(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return prefix + time.Now().Format("20060102") + "-" + suffix[:8]
}

// HasLock reports whether any holder is recorded, expired or not
func (o *Order) HasLock() bool {
	return o.PackingHolder != nil && *o.PackingHolder != ""
}

// LockExpired reports whether the recorded lease has lapsed at the given instant
func (o *Order) LockExpired(now time.Time) bool {
	return o.PackingExpiresAt != nil && o.PackingExpiresAt.Before(now)
}
