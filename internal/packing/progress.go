package packing

import (
	"errors"
	"log"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"gorm.io/gorm"
)

// Progress is the aggregate packing state of an order, pushed to
// observers after every mutating operation. Delivery is best-effort:
// observers treat it as a cache-invalidation hint, the scan log is the
// durable audit trail.
type Progress struct {
	OrderID          uint                   `json:"orderId"`
	OrderNumber      string                 `json:"order_number"`
	Status           models.OrderStatus     `json:"status"`
	PackagingStatus  models.PackagingStatus `json:"packaging_status"`
	PackingHolder    *string                `json:"packing_holder,omitempty"`
	PackingExpiresAt *time.Time             `json:"packing_expires_at,omitempty"`
	TotalItems       int                    `json:"total_items"`
	VerifiedItems    int                    `json:"verified_items"`
	PendingItems     int                    `json:"pending_items"`
	ProgressPct      float64                `json:"progress_pct"`
	Timestamp        time.Time              `json:"timestamp"`
}

// Publisher pushes progress updates to interested observers. The
// transport is injected so core logic stays testable without one.
type Publisher interface {
	PublishProgress(p Progress)
}

// NopPublisher discards all updates
type NopPublisher struct{}

// PublishProgress implements Publisher
func (NopPublisher) PublishProgress(Progress) {}

// ComputeProgress aggregates verification state over the active items
func ComputeProgress(order *models.Order, items []models.OrderItem, now time.Time) Progress {
	p := Progress{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		PackagingStatus:  order.PackagingStatus,
		PackingHolder:    order.PackingHolder,
		PackingExpiresAt: order.PackingExpiresAt,
		Timestamp:        now,
	}

	for _, item := range items {
		if !item.IsActive() {
			continue
		}
		p.TotalItems++
		if item.Verification != nil && item.Verification.IsVerified {
			p.VerifiedItems++
		}
	}
	p.PendingItems = p.TotalItems - p.VerifiedItems
	if p.TotalItems > 0 {
		p.ProgressPct = float64(p.VerifiedItems) / float64(p.TotalItems) * 100
	}
	return p
}

// SnapshotProgress loads an order with its active items and computes the
// aggregate. No lock is required for reads.
func SnapshotProgress(db *gorm.DB, orderID uint) (*Progress, error) {
	var order models.Order
	if err := db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var items []models.OrderItem
	if err := db.Preload("Verification").
		Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}

	p := ComputeProgress(&order, items, time.Now().UTC())
	return &p, nil
}

// publishSnapshot recomputes and broadcasts progress. Failures only log:
// broadcast is a secondary effect and never blocks the primary mutation.
func publishSnapshot(db *gorm.DB, pub Publisher, orderID uint) {
	if pub == nil {
		return
	}
	p, err := SnapshotProgress(db, orderID)
	if err != nil {
		log.Printf("⚠️ Packing: failed to snapshot order %d for broadcast: %v", orderID, err)
		return
	}
	pub.PublishProgress(*p)
}
