package packing

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"gorm.io/gorm"
)

// ExternalLine is one invoice line as reported by the external invoicing
// system, the system of record for what was actually sold.
type ExternalLine struct {
	LineID      *int64  `json:"line_id,omitempty"`
	ProductCode string  `json:"product_code"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// ItemUpdate is an in-place mutation of a matched local item
type ItemUpdate struct {
	ItemID      uint
	Name        string
	ProductCode string
	LineID      *int64
	Quantity    float64
	UnitPrice   float64

	// RequiredScans carries the re-evaluated verification requirement
	// when the quantity changed on an item with scan evidence
	RequiredScans *float64
}

// ItemSplit preserves scan evidence when the product behind a line
// changed: the original is frozen as replaced, new work is created.
type ItemSplit struct {
	ItemID         uint
	FreezeQuantity float64 // = scanned count, "fully accounted for what was scanned"
	NewLine        ExternalLine
}

// ItemMerge folds an unmatched duplicate into its surviving sibling
type ItemMerge struct {
	SurvivorID  uint
	DuplicateID uint
	AddScans    float64
}

// ReconcilePlan is the pure diff between local order items and a freshly
// fetched external line list. Applying it never destroys recorded scans.
type ReconcilePlan struct {
	Updates      []ItemUpdate
	Splits       []ItemSplit
	Replacements []uint // unmatched local items with evidence → replaced
	Merges       []ItemMerge
	Deletes      []uint // unmatched local items without evidence
	Inserts      []ExternalLine

	// Changed is true when any mutation occurred; it drives the
	// requires_review flag on the order
	Changed bool
}

// BuildReconcilePlan diffs active local items against external lines.
// Matching precedence per line: invoice line number, product code,
// case/space-insensitive name. Each local item is consumed at most once.
func BuildReconcilePlan(items []models.OrderItem, lines []ExternalLine) ReconcilePlan {
	plan := ReconcilePlan{}

	active := make([]*models.OrderItem, 0, len(items))
	for i := range items {
		if items[i].IsActive() {
			active = append(active, &items[i])
		}
	}

	matched := make(map[uint]*ExternalLine) // item id → line
	lineMatched := make([]bool, len(lines))

	claim := func(li int, item *models.OrderItem) {
		matched[item.ID] = &lines[li]
		lineMatched[li] = true
	}

	// Pass 1: invoice line number
	for li := range lines {
		if lines[li].LineID == nil {
			continue
		}
		for _, item := range active {
			if _, taken := matched[item.ID]; taken {
				continue
			}
			if item.InvoiceLineID != nil && *item.InvoiceLineID == *lines[li].LineID {
				claim(li, item)
				break
			}
		}
	}

	// Pass 2: product code
	for li := range lines {
		if lineMatched[li] || lines[li].ProductCode == "" {
			continue
		}
		for _, item := range active {
			if _, taken := matched[item.ID]; taken {
				continue
			}
			if item.ProductCode != "" && item.ProductCode == lines[li].ProductCode {
				claim(li, item)
				break
			}
		}
	}

	// Pass 3: normalized name
	for li := range lines {
		if lineMatched[li] {
			continue
		}
		want := NormalizeName(lines[li].Name)
		for _, item := range active {
			if _, taken := matched[item.ID]; taken {
				continue
			}
			if NormalizeName(item.Name) == want {
				claim(li, item)
				break
			}
		}
	}

	// Matched pairs
	for _, item := range active {
		line, ok := matched[item.ID]
		if !ok {
			continue
		}

		scanned := item.ScannedCount()
		identityChanged := productIdentityChanged(item, line)

		switch {
		case identityChanged && scanned > 0:
			// Split: old evidence is preserved, new work is created
			plan.Splits = append(plan.Splits, ItemSplit{
				ItemID:         item.ID,
				FreezeQuantity: scanned,
				NewLine:        *line,
			})
			plan.Changed = true

		default:
			upd := ItemUpdate{
				ItemID:      item.ID,
				Name:        line.Name,
				ProductCode: line.ProductCode,
				LineID:      line.LineID,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
			}
			if line.Quantity != item.Quantity {
				// Re-evaluate the requirement instead of discarding scans.
				// A ledger row may exist even at zero scans (pre-created by
				// an insert or a notes-only confirmation); leaving its
				// required_scans stale would let a grown line fully verify
				// on the old count. The applier no-ops when no row exists.
				req := line.Quantity
				if req < 1 {
					req = 1
				}
				upd.RequiredScans = &req
			}
			if itemChanged(item, line) {
				plan.Updates = append(plan.Updates, upd)
				plan.Changed = true
			}
		}
	}

	// Unmatched local items
	matchedKeys := make(map[string]uint) // product key → surviving item id
	for _, item := range active {
		if _, ok := matched[item.ID]; ok {
			matchedKeys[productKey(item)] = item.ID
		}
	}
	for _, item := range active {
		if _, ok := matched[item.ID]; ok {
			continue
		}
		scanned := item.ScannedCount()
		if scanned > 0 {
			if survivorID, dup := matchedKeys[productKey(item)]; dup {
				// First-match-wins sibling merge
				plan.Merges = append(plan.Merges, ItemMerge{
					SurvivorID:  survivorID,
					DuplicateID: item.ID,
					AddScans:    scanned,
				})
			} else {
				plan.Replacements = append(plan.Replacements, item.ID)
			}
		} else {
			plan.Deletes = append(plan.Deletes, item.ID)
		}
		plan.Changed = true
	}

	// Unmatched external lines become new items
	for li := range lines {
		if !lineMatched[li] {
			plan.Inserts = append(plan.Inserts, lines[li])
			plan.Changed = true
		}
	}

	return plan
}

// productIdentityChanged reports whether the line refers to a different
// product than the local item: codes differ when both are present,
// otherwise the normalized names differ.
func productIdentityChanged(item *models.OrderItem, line *ExternalLine) bool {
	if item.ProductCode != "" && line.ProductCode != "" {
		return item.ProductCode != line.ProductCode
	}
	return NormalizeName(item.Name) != NormalizeName(line.Name)
}

// itemChanged reports whether the in-place update would modify anything
func itemChanged(item *models.OrderItem, line *ExternalLine) bool {
	if item.Quantity != line.Quantity || item.UnitPrice != line.UnitPrice {
		return true
	}
	if line.ProductCode != "" && item.ProductCode != line.ProductCode {
		return true
	}
	if NormalizeName(item.Name) != NormalizeName(line.Name) {
		return true
	}
	if line.LineID != nil && (item.InvoiceLineID == nil || *item.InvoiceLineID != *line.LineID) {
		return true
	}
	return false
}

func productKey(item *models.OrderItem) string {
	if item.ProductCode != "" {
		return "code:" + item.ProductCode
	}
	return "name:" + NormalizeName(item.Name)
}

// Reconciler merges externally sourced invoice lines into local order
// items without losing verification evidence. It may run while a packing
// lock is held; it never touches the lock fields.
type Reconciler struct {
	db  *gorm.DB
	pub Publisher
	now func() time.Time
}

// NewReconciler creates a reconciliation engine
func NewReconciler(db *gorm.DB, pub Publisher) *Reconciler {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Reconciler{
		db:  db,
		pub: pub,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileResult summarizes an applied plan
type ReconcileResult struct {
	Updated        int  `json:"updated"`
	Split          int  `json:"split"`
	Replaced       int  `json:"replaced"`
	Merged         int  `json:"merged"`
	Deleted        int  `json:"deleted"`
	Inserted       int  `json:"inserted"`
	RequiresReview bool `json:"requires_review"`
}

// Reconcile diffs and applies in one go. The merge itself is
// transactional; the audit side-write is best-effort and never aborts it.
func (r *Reconciler) Reconcile(orderID uint, lines []ExternalLine) (*ReconcileResult, error) {
	var order models.Order
	if err := r.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var items []models.OrderItem
	if err := r.db.Preload("Verification").
		Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}

	plan := BuildReconcilePlan(items, lines)
	result := &ReconcileResult{
		Updated:        len(plan.Updates),
		Split:          len(plan.Splits),
		Replaced:       len(plan.Replacements),
		Merged:         len(plan.Merges),
		Deleted:        len(plan.Deletes),
		Inserted:       len(plan.Inserts),
		RequiresReview: plan.Changed,
	}

	if !plan.Changed {
		return result, nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		return r.applyPlan(tx, &order, plan)
	})
	if err != nil {
		return nil, err
	}

	r.writeAudit(orderID, plan)
	publishSnapshot(r.db, r.pub, orderID)
	return result, nil
}

func (r *Reconciler) applyPlan(tx *gorm.DB, order *models.Order, plan ReconcilePlan) error {
	now := r.now()

	for _, upd := range plan.Updates {
		updates := map[string]interface{}{
			"name":       upd.Name,
			"quantity":   upd.Quantity,
			"unit_price": upd.UnitPrice,
		}
		if upd.ProductCode != "" {
			updates["product_code"] = upd.ProductCode
		}
		if upd.LineID != nil {
			updates["invoice_line_id"] = *upd.LineID
		}
		if err := tx.Model(&models.OrderItem{}).
			Where("id = ?", upd.ItemID).Updates(updates).Error; err != nil {
			return err
		}

		if upd.RequiredScans != nil {
			// Clamp evidence to the new requirement and re-evaluate the flag
			if err := tx.Model(&models.ItemVerification{}).
				Where("order_item_id = ?", upd.ItemID).
				Updates(map[string]interface{}{
					"required_scans": *upd.RequiredScans,
					"scanned_count":  gorm.Expr("LEAST(scanned_count, ?)", *upd.RequiredScans),
					"is_verified":    gorm.Expr("LEAST(scanned_count, ?) >= ?", *upd.RequiredScans, *upd.RequiredScans),
				}).Error; err != nil {
				return err
			}
		}
	}

	for _, split := range plan.Splits {
		// Freeze the original at what was actually scanned
		if err := tx.Model(&models.OrderItem{}).
			Where("id = ?", split.ItemID).
			Updates(map[string]interface{}{
				"status":   models.OrderItemReplaced,
				"quantity": split.FreezeQuantity,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ItemVerification{}).
			Where("order_item_id = ?", split.ItemID).
			Updates(map[string]interface{}{
				"required_scans": split.FreezeQuantity,
				"scanned_count":  split.FreezeQuantity,
				"is_verified":    true,
				"verified_at":    gorm.Expr("COALESCE(verified_at, ?)", now),
			}).Error; err != nil {
			return err
		}

		if err := r.insertLine(tx, order.ID, split.NewLine); err != nil {
			return err
		}
	}

	for _, id := range plan.Replacements {
		if err := tx.Model(&models.OrderItem{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":   models.OrderItemReplaced,
				"quantity": gorm.Expr("(SELECT scanned_count FROM item_verifications WHERE order_item_id = ?)", id),
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ItemVerification{}).
			Where("order_item_id = ?", id).
			Updates(map[string]interface{}{
				"required_scans": gorm.Expr("scanned_count"),
				"is_verified":    true,
				"verified_at":    gorm.Expr("COALESCE(verified_at, ?)", now),
			}).Error; err != nil {
			return err
		}
	}

	for _, merge := range plan.Merges {
		// Fold the duplicate's scans into the survivor, clamped to its requirement
		if err := tx.Model(&models.ItemVerification{}).
			Where("order_item_id = ?", merge.SurvivorID).
			Updates(map[string]interface{}{
				"scanned_count": gorm.Expr("LEAST(scanned_count + ?, required_scans)", merge.AddScans),
				"is_verified":   gorm.Expr("LEAST(scanned_count + ?, required_scans) >= required_scans", merge.AddScans),
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_item_id = ?", merge.DuplicateID).
			Delete(&models.ItemVerification{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.OrderItem{}, merge.DuplicateID).Error; err != nil {
			return err
		}
	}

	for _, id := range plan.Deletes {
		if err := tx.Where("order_item_id = ?", id).
			Delete(&models.ItemVerification{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.OrderItem{}, id).Error; err != nil {
			return err
		}
	}

	for _, line := range plan.Inserts {
		if err := r.insertLine(tx, order.ID, line); err != nil {
			return err
		}
	}

	return tx.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("packaging_status", models.PackagingRequiresReview).Error
}

// insertLine creates a fresh active item with a zero-progress ledger row
func (r *Reconciler) insertLine(tx *gorm.DB, orderID uint, line ExternalLine) error {
	item := models.OrderItem{
		OrderID:       orderID,
		InvoiceLineID: line.LineID,
		ProductCode:   line.ProductCode,
		Name:          line.Name,
		Quantity:      line.Quantity,
		UnitPrice:     line.UnitPrice,
		Status:        models.OrderItemActive,
	}
	if err := tx.Create(&item).Error; err != nil {
		return err
	}

	required := line.Quantity
	if required < 1 {
		required = 1
	}
	piv := models.ItemVerification{
		OrderID:       orderID,
		OrderItemID:   item.ID,
		RequiredScans: required,
	}
	return tx.Create(&piv).Error
}

// writeAudit records the merge in the optional audit side-table. A
// failure here is logged and swallowed: merge correctness does not
// depend on audit availability.
func (r *Reconciler) writeAudit(orderID uint, plan ReconcilePlan) {
	detail, err := json.Marshal(map[string]int{
		"updates":      len(plan.Updates),
		"splits":       len(plan.Splits),
		"replacements": len(plan.Replacements),
		"merges":       len(plan.Merges),
		"deletes":      len(plan.Deletes),
		"inserts":      len(plan.Inserts),
	})
	if err != nil {
		return
	}

	audit := models.PackagingAudit{
		OrderID: orderID,
		Action:  "invoice_reconciliation",
		Detail:  detail,
	}
	if err := r.db.Create(&audit).Error; err != nil {
		log.Printf("⚠️ Reconciliation: audit write failed for order %d: %v", orderID, err)
	}
}
