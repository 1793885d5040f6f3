package packing

import (
	"errors"
	"log"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"gorm.io/gorm"
)

// LockStatus is a read-only snapshot of an order's packing lock.
// IsExpired is derived at read time so callers can detect staleness
// before the background sweep runs.
type LockStatus struct {
	OrderID         uint                   `json:"orderId"`
	Holder          string                 `json:"holder,omitempty"`
	HeartbeatAt     *time.Time             `json:"heartbeat_at,omitempty"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
	LockReason      string                 `json:"lock_reason,omitempty"`
	PackagingStatus models.PackagingStatus `json:"packaging_status"`
	IsExpired       bool                   `json:"isExpired"`
}

// LockManager owns the exclusivity lock embedded on the order row.
// Every mutation is a single conditional UPDATE so two operators racing
// for the same order can never both win; the loser gets a typed error
// immediately and never waits.
type LockManager struct {
	db         *gorm.DB
	pub        Publisher
	defaultTTL time.Duration
	now        func() time.Time
}

// NewLockManager creates a lock manager with the given default lease length
func NewLockManager(db *gorm.DB, pub Publisher, defaultTTL time.Duration) *LockManager {
	if pub == nil {
		pub = NopPublisher{}
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &LockManager{
		db:         db,
		pub:        pub,
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// DefaultTTL returns the lease length used when a request omits one
func (m *LockManager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Acquire takes the packing lock for actor. Succeeds iff no holder is
// recorded, the recorded lease has expired, or actor already holds it
// (idempotent re-entry extends the same lease). requires_review is
// preserved so reconciliation review cannot be skipped by re-acquiring.
func (m *LockManager) Acquire(orderID uint, actor string, ttl time.Duration) (*LockStatus, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()
	expires := now.Add(ttl)

	res := m.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("packing_holder IS NULL OR packing_expires_at < ? OR packing_holder = ?", now, actor).
		Updates(map[string]interface{}{
			"packing_holder":       actor,
			"packing_heartbeat_at": now,
			"packing_expires_at":   expires,
			"packing_lock_reason":  "",
			"packaging_status": gorm.Expr(
				"CASE WHEN packaging_status = ? THEN packaging_status ELSE ? END",
				models.PackagingRequiresReview, models.PackagingInProgress),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		status, err := m.GetLockStatus(orderID)
		if err != nil {
			return nil, err
		}
		return nil, &LockConflictError{Err: ErrLockHeld, Holder: status.Holder, ExpiresAt: status.ExpiresAt}
	}

	publishSnapshot(m.db, m.pub, orderID)
	return m.GetLockStatus(orderID)
}

// Heartbeat extends the lease while the packer is actively working.
// Ownership and expiry are re-verified in the UPDATE itself: a heartbeat
// racing the sweep simply loses.
func (m *LockManager) Heartbeat(orderID uint, actor string, ttl time.Duration) (*LockStatus, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()

	res := m.db.Model(&models.Order{}).
		Where("id = ? AND packing_holder = ? AND packing_expires_at >= ?", orderID, actor, now).
		Updates(map[string]interface{}{
			"packing_heartbeat_at": now,
			"packing_expires_at":   now.Add(ttl),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		return nil, m.ownershipFailure(orderID, actor)
	}
	return m.GetLockStatus(orderID)
}

// ReleaseWithStatus is a voluntary handoff: the holder clears the lock
// and leaves the order paused or blocked so another operator may resume.
func (m *LockManager) ReleaseWithStatus(orderID uint, actor string, status models.PackagingStatus, reason string) error {
	if !status.IsReleaseStatus() {
		return ErrInvalidInput
	}
	return m.releaseAs(orderID, actor, status, reason)
}

// CompleteAndRelease clears the lock and marks packaging completed
func (m *LockManager) CompleteAndRelease(orderID uint, actor string) error {
	return m.releaseAs(orderID, actor, models.PackagingCompleted, "")
}

func (m *LockManager) releaseAs(orderID uint, actor string, status models.PackagingStatus, reason string) error {
	res := m.db.Model(&models.Order{}).
		Where("id = ? AND packing_holder = ?", orderID, actor).
		Updates(map[string]interface{}{
			"packing_holder":       nil,
			"packing_heartbeat_at": nil,
			"packing_expires_at":   nil,
			"packing_lock_reason":  reason,
			"packaging_status":     status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return m.ownershipFailure(orderID, actor)
	}

	publishSnapshot(m.db, m.pub, orderID)
	return nil
}

// AdminUnlock clears the lock unconditionally to recover a stuck or
// zombie lease. Privilege is checked by the caller, not here.
func (m *LockManager) AdminUnlock(orderID uint, adminActor, reason string) error {
	var order models.Order
	if err := m.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !order.HasLock() {
		return ErrInvalidState
	}

	lockReason := "admin_unlock"
	if reason != "" {
		lockReason = "admin_unlock: " + reason
	}

	res := m.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"packing_holder":       nil,
			"packing_heartbeat_at": nil,
			"packing_expires_at":   nil,
			"packing_lock_reason":  lockReason,
			"packaging_status": gorm.Expr(
				"CASE WHEN packaging_status = ? THEN ? ELSE packaging_status END",
				models.PackagingInProgress, models.PackagingPaused),
		})
	if res.Error != nil {
		return res.Error
	}

	log.Printf("🔓 Packing: order %d unlocked by %s (was held by %s)", orderID, adminActor, *order.PackingHolder)
	publishSnapshot(m.db, m.pub, orderID)
	return nil
}

// ExpireStaleLocks reclaims every lapsed lease: the holder is cleared,
// the reason tagged timeout, and in_progress orders drop back to paused
// so another operator can pick them up. Idempotent; run from the
// background sweep.
func (m *LockManager) ExpireStaleLocks() (int, error) {
	now := m.now()

	var staleIDs []uint
	if err := m.db.Model(&models.Order{}).
		Where("packing_holder IS NOT NULL AND packing_expires_at < ?", now).
		Pluck("id", &staleIDs).Error; err != nil {
		return 0, err
	}
	if len(staleIDs) == 0 {
		return 0, nil
	}

	res := m.db.Model(&models.Order{}).
		Where("id IN ? AND packing_holder IS NOT NULL AND packing_expires_at < ?", staleIDs, now).
		Updates(map[string]interface{}{
			"packing_holder":       nil,
			"packing_heartbeat_at": nil,
			"packing_expires_at":   nil,
			"packing_lock_reason":  "timeout",
			"packaging_status": gorm.Expr(
				"CASE WHEN packaging_status = ? THEN ? ELSE packaging_status END",
				models.PackagingInProgress, models.PackagingPaused),
		})
	if res.Error != nil {
		return 0, res.Error
	}

	for _, id := range staleIDs {
		publishSnapshot(m.db, m.pub, id)
	}
	return int(res.RowsAffected), nil
}

// GetLockStatus returns a snapshot including the derived IsExpired flag
func (m *LockManager) GetLockStatus(orderID uint) (*LockStatus, error) {
	var order models.Order
	if err := m.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lockStatusOf(&order, m.now()), nil
}

func lockStatusOf(order *models.Order, now time.Time) *LockStatus {
	status := &LockStatus{
		OrderID:         order.ID,
		HeartbeatAt:     order.PackingHeartbeatAt,
		ExpiresAt:       order.PackingExpiresAt,
		LockReason:      order.PackingLockReason,
		PackagingStatus: order.PackagingStatus,
		IsExpired:       order.HasLock() && order.LockExpired(now),
	}
	if order.PackingHolder != nil {
		status.Holder = *order.PackingHolder
	}
	return status
}

// RequireActiveLock loads the order and verifies actor holds a live
// lease. Called immediately before every verification mutation, never
// trusted from session start, because TTLs can lapse mid-session.
func (m *LockManager) RequireActiveLock(orderID uint, actor string) (*models.Order, error) {
	var order models.Order
	if err := m.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := m.now()
	switch {
	case !order.HasLock():
		return nil, &LockConflictError{Err: ErrNotOwner}
	case *order.PackingHolder != actor:
		return nil, &LockConflictError{Err: ErrLockHeld, Holder: *order.PackingHolder, ExpiresAt: order.PackingExpiresAt}
	case order.LockExpired(now):
		return nil, &LockConflictError{Err: ErrLockExpired, Holder: actor, ExpiresAt: order.PackingExpiresAt}
	}
	return &order, nil
}

// ownershipFailure classifies why a conditional lock update matched no row
func (m *LockManager) ownershipFailure(orderID uint, actor string) error {
	var order models.Order
	if err := m.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if order.HasLock() && *order.PackingHolder == actor && order.LockExpired(m.now()) {
		return &LockConflictError{Err: ErrLockExpired, Holder: actor, ExpiresAt: order.PackingExpiresAt}
	}

	conflict := &LockConflictError{Err: ErrNotOwner}
	if order.HasLock() {
		conflict.Holder = *order.PackingHolder
		conflict.ExpiresAt = order.PackingExpiresAt
	}
	return conflict
}
