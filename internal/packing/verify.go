package packing

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Verifier runs the scan-to-item verification flow against the ledger.
// All mutations re-validate lock ownership first and use conditional
// single-statement updates so concurrent scans on the same item cannot
// lose increments.
type Verifier struct {
	db    *gorm.DB
	locks *LockManager
	pub   Publisher
	now   func() time.Time
}

// NewVerifier creates a verification engine bound to the lock manager
func NewVerifier(db *gorm.DB, locks *LockManager, pub Publisher) *Verifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Verifier{
		db:    db,
		locks: locks,
		pub:   pub,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ScanResult reports the outcome of a barcode verification
type ScanResult struct {
	Item            *models.OrderItem        `json:"item"`
	Verification    *models.ItemVerification `json:"verification"`
	AlreadyVerified bool                     `json:"already_verified"`
	Message         string                   `json:"message"`
}

// ManualVerification is the operator-entered payload for a single item
type ManualVerification struct {
	PackedQuantity *float64 `json:"packed_quantity,omitempty"`
	Notes          string   `json:"verification_notes,omitempty"`
	IsVerified     *bool    `json:"is_verified,omitempty"`
}

// VerifyItemByBarcode matches a scanned barcode to an active item of the
// order and records one scan. Repeated scans of a fully verified item are
// an idempotent no-op, not an error.
func (v *Verifier) VerifyItemByBarcode(orderID uint, actor, rawBarcode string) (*ScanResult, error) {
	order, err := v.locks.RequireActiveLock(orderID, actor)
	if err != nil {
		return nil, err
	}

	norm := NormalizeBarcode(rawBarcode)
	if norm == "" {
		return nil, ErrInvalidInput
	}

	product, err := v.resolveProduct(rawBarcode, norm)
	if err != nil {
		return nil, err
	}

	item, err := v.matchActiveItem(order.ID, product.Name)
	if err != nil {
		return nil, err
	}

	piv, err := v.getOrCreateVerification(item)
	if err != nil {
		return nil, err
	}

	if piv.ScannedCount >= piv.RequiredScans {
		return &ScanResult{Item: item, Verification: piv, AlreadyVerified: true,
			Message: "item already fully verified"}, nil
	}

	// Counter increment and scan-log append are one unit of work: a log
	// write failure must not leave an unaccounted increment.
	alreadyVerified := false
	err = v.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ItemVerification{}).
			Where("id = ? AND scanned_count < required_scans", piv.ID).
			Updates(map[string]interface{}{
				"scanned_count": gorm.Expr("scanned_count + 1"),
				"is_verified":   gorm.Expr("scanned_count + 1 >= required_scans"),
				"verified_by":   actor,
				"verified_at": gorm.Expr(
					"CASE WHEN scanned_count + 1 >= required_scans AND verified_at IS NULL THEN ? ELSE verified_at END",
					v.now()),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent scan crossed the threshold first
			alreadyVerified = true
			return nil
		}

		if err := tx.First(piv, piv.ID).Error; err != nil {
			return err
		}

		entry := models.ScanLogEntry{
			OrderID:     order.ID,
			OrderItemID: item.ID,
			Barcode:     norm,
			Sequence:    int(math.Round(piv.ScannedCount)),
			ScannedBy:   actor,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	if alreadyVerified {
		if err := v.db.First(piv, piv.ID).Error; err != nil {
			return nil, err
		}
		return &ScanResult{Item: item, Verification: piv, AlreadyVerified: true,
			Message: "item already fully verified"}, nil
	}

	publishSnapshot(v.db, v.pub, order.ID)

	msg := "scan recorded"
	if piv.IsVerified {
		msg = "item fully verified"
	}
	return &ScanResult{Item: item, Verification: piv, Message: msg}, nil
}

// SavePartialProgress persists an operator-entered tally (scale reading,
// manual count). Monotonic: the stored count is max(incoming, existing)
// clamped to required_scans, so a stale client can never erase progress
// recorded by a concurrent scan.
func (v *Verifier) SavePartialProgress(itemID uint, actor string, scanned float64, required *float64) (*models.ItemVerification, error) {
	if math.IsNaN(scanned) || math.IsInf(scanned, 0) || scanned < 0 {
		return nil, ErrInvalidInput
	}
	if required != nil && (math.IsNaN(*required) || math.IsInf(*required, 0) || *required < 1) {
		return nil, ErrInvalidInput
	}

	item, err := v.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	if _, err := v.locks.RequireActiveLock(item.OrderID, actor); err != nil {
		return nil, err
	}

	piv, err := v.getOrCreateVerification(item)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"verified_by": actor,
	}
	if required != nil {
		updates["required_scans"] = *required
		updates["scanned_count"] = gorm.Expr("LEAST(GREATEST(scanned_count, ?), ?)", scanned, *required)
		updates["is_verified"] = gorm.Expr("LEAST(GREATEST(scanned_count, ?), ?) >= ?", scanned, *required, *required)
		updates["verified_at"] = gorm.Expr(
			"CASE WHEN LEAST(GREATEST(scanned_count, ?), ?) >= ? AND verified_at IS NULL THEN ? ELSE verified_at END",
			scanned, *required, *required, v.now())
	} else {
		updates["scanned_count"] = gorm.Expr("LEAST(GREATEST(scanned_count, ?), required_scans)", scanned)
		updates["is_verified"] = gorm.Expr("LEAST(GREATEST(scanned_count, ?), required_scans) >= required_scans", scanned)
		updates["verified_at"] = gorm.Expr(
			"CASE WHEN LEAST(GREATEST(scanned_count, ?), required_scans) >= required_scans AND verified_at IS NULL THEN ? ELSE verified_at END",
			scanned, v.now())
	}

	if err := v.db.Model(&models.ItemVerification{}).
		Where("id = ?", piv.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := v.db.First(piv, piv.ID).Error; err != nil {
		return nil, err
	}

	publishSnapshot(v.db, v.pub, item.OrderID)
	return piv, nil
}

// VerifyItemManual applies an operator's per-item confirmation: packed
// quantity (monotonic, like SavePartialProgress), notes, or an explicit
// verified flag. This is the only bulk-free path allowed during
// requires_review.
func (v *Verifier) VerifyItemManual(itemID uint, actor string, req ManualVerification) (*models.ItemVerification, error) {
	item, err := v.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	if _, err := v.locks.RequireActiveLock(item.OrderID, actor); err != nil {
		return nil, err
	}

	piv, err := v.getOrCreateVerification(item)
	if err != nil {
		return nil, err
	}

	if req.PackedQuantity != nil {
		if math.IsNaN(*req.PackedQuantity) || math.IsInf(*req.PackedQuantity, 0) || *req.PackedQuantity < 0 {
			return nil, ErrInvalidInput
		}
		if _, err := v.SavePartialProgress(itemID, actor, *req.PackedQuantity, nil); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if req.IsVerified != nil && *req.IsVerified {
		updates["scanned_count"] = gorm.Expr("required_scans")
		updates["is_verified"] = true
		updates["verified_by"] = actor
		updates["verified_at"] = gorm.Expr("COALESCE(verified_at, ?)", v.now())
	}
	if req.Notes != "" {
		notes, err := json.Marshal(map[string]string{"note": req.Notes, "by": actor})
		if err == nil {
			updates["packer_notes"] = notes
		}
	}
	if len(updates) > 0 {
		if err := v.db.Model(&models.ItemVerification{}).
			Where("id = ?", piv.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if err := v.db.First(piv, piv.ID).Error; err != nil {
		return nil, err
	}
	publishSnapshot(v.db, v.pub, item.OrderID)
	return piv, nil
}

// VerifyAllItems bulk-marks every active item fully verified. Disabled
// during requires_review: after an invoice change a human must confirm
// every line individually.
func (v *Verifier) VerifyAllItems(orderID uint, actor string) error {
	order, err := v.locks.RequireActiveLock(orderID, actor)
	if err != nil {
		return err
	}
	if order.PackagingStatus == models.PackagingRequiresReview {
		return ErrForbidden
	}

	var items []models.OrderItem
	if err := v.db.Where("order_id = ? AND status = ?", orderID, models.OrderItemActive).
		Find(&items).Error; err != nil {
		return err
	}

	now := v.now()
	for i := range items {
		piv, err := v.getOrCreateVerification(&items[i])
		if err != nil {
			return err
		}
		if err := v.db.Model(&models.ItemVerification{}).
			Where("id = ?", piv.ID).
			Updates(map[string]interface{}{
				"scanned_count": gorm.Expr("required_scans"),
				"is_verified":   true,
				"verified_by":   actor,
				"verified_at":   gorm.Expr("COALESCE(verified_at, ?)", now),
			}).Error; err != nil {
			return err
		}
	}

	publishSnapshot(v.db, v.pub, orderID)
	return nil
}

// CompletePackaging validates full verification plus photographic
// evidence, then transitions the order out of the packing stage and
// releases the lock.
func (v *Verifier) CompletePackaging(orderID uint, actor string) (*Progress, error) {
	order, err := v.locks.RequireActiveLock(orderID, actor)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := v.db.Preload("Verification").
		Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}

	progress := ComputeProgress(order, items, v.now())

	var evidenceCount int64
	if err := v.db.Model(&models.PackagingEvidence{}).
		Where("order_id = ?", orderID).Count(&evidenceCount).Error; err != nil {
		return nil, err
	}

	if progress.PendingItems > 0 || evidenceCount == 0 {
		return nil, &CompletionError{
			TotalItems:    progress.TotalItems,
			VerifiedItems: progress.VerifiedItems,
			PendingItems:  progress.PendingItems,
			EvidenceCount: int(evidenceCount),
		}
	}

	if err := v.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", models.OrderStatusReadyToShip).Error; err != nil {
		return nil, err
	}
	if err := v.locks.CompleteAndRelease(orderID, actor); err != nil {
		return nil, err
	}

	return SnapshotProgress(v.db, orderID)
}

// resolveProduct matches a barcode to the product catalog: exact barcode
// first (normalized, raw, digit-only), then digit-stripped equality, then
// internal code.
func (v *Verifier) resolveProduct(raw, norm string) (*models.Product, error) {
	digits := DigitsOnly(norm)

	var product models.Product
	err := v.db.Where("barcode IN ?", []string{norm, raw, digits}).First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if digits != "" {
		err = v.db.Where("regexp_replace(barcode, '[^0-9]', '', 'g') = ? AND barcode <> ''", digits).
			First(&product).Error
		if err == nil {
			return &product, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err = v.db.Where("internal_code IN ?", []string{norm, raw}).First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, ErrBarcodeUnresolvable
}

// matchActiveItem finds the order's active item whose name matches the
// product, case/space-insensitive. A known barcode on a product the
// order does not contain is a distinct error from an unknown barcode.
func (v *Verifier) matchActiveItem(orderID uint, productName string) (*models.OrderItem, error) {
	var items []models.OrderItem
	if err := v.db.Where("order_id = ? AND status = ?", orderID, models.OrderItemActive).
		Order("id").Find(&items).Error; err != nil {
		return nil, err
	}

	want := NormalizeName(productName)
	for i := range items {
		if NormalizeName(items[i].Name) == want {
			return &items[i], nil
		}
	}
	return nil, ErrProductNotInOrder
}

// getOrCreateVerification lazily creates the ledger row with
// required_scans defaulting to the item quantity (at least one). Two
// operators can race on the first scan of the same item, so the insert
// must not fail on the order_item_id unique index: conflict means the
// row exists and the re-read wins either way.
func (v *Verifier) getOrCreateVerification(item *models.OrderItem) (*models.ItemVerification, error) {
	required := item.Quantity
	if required < 1 {
		required = 1
	}

	seed := models.ItemVerification{
		OrderID:       item.OrderID,
		OrderItemID:   item.ID,
		RequiredScans: required,
	}
	if err := v.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_item_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var piv models.ItemVerification
	if err := v.db.Where("order_item_id = ?", item.ID).First(&piv).Error; err != nil {
		return nil, err
	}
	return &piv, nil
}

func (v *Verifier) loadItem(itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := v.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}
