package models

import (
	"time"

	"gorm.io/datatypes"
)

// ItemVerification tracks per-item packing progress. One row per active
// order item, created lazily on the first verification attempt. The row
// survives the item being marked replaced, as audit trail.
//
// Invariants:
//   - 0 <= ScannedCount <= RequiredScans (ScannedCount only decreases when
//     reconciliation lowers RequiredScans)
//   - IsVerified == ScannedCount >= RequiredScans, except the bulk
//     verify-all path which sets both together
type ItemVerification struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	OrderID     uint `gorm:"index;not null" json:"order_id"`
	OrderItemID uint `gorm:"uniqueIndex;not null" json:"order_item_id"`

	RequiredScans float64 `gorm:"not null;default:1" json:"required_scans"`
	ScannedCount  float64 `gorm:"not null;default:0" json:"scanned_count"`

	IsVerified bool       `gorm:"default:false;index" json:"is_verified"`
	VerifiedBy string     `json:"verified_by"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	// Free-form packer metadata (manual tallies, scale readings, remarks)
	PackerNotes datatypes.JSON `json:"packer_notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for ItemVerification model
func (ItemVerification) TableName() string {
	return "item_verifications"
}

// ScanLogEntry is the append-only audit trail of every accepted scan.
// Never mutated or deleted.
type ScanLogEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"index;not null" json:"order_id"`
	OrderItemID uint      `gorm:"index;not null" json:"order_item_id"`
	Barcode     string    `gorm:"not null" json:"barcode"` // normalized form
	Sequence    int       `gorm:"not null" json:"sequence"`
	ScannedBy   string    `json:"scanned_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for ScanLogEntry model
func (ScanLogEntry) TableName() string {
	return "scan_log_entries"
}

// PackagingEvidence records a photo taken of the packed order. At least
// one row is required before packing can be completed.
type PackagingEvidence struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"index;not null" json:"order_id"`
	FileURL    string    `gorm:"not null" json:"file_url"`
	Note       string    `json:"note"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for PackagingEvidence model
func (PackagingEvidence) TableName() string {
	return "packaging_evidences"
}

// PackagingAudit is an optional side-table recording reconciliation
// actions. Writes to it are best-effort: a failure here never rolls back
// the merge itself.
type PackagingAudit struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OrderID   uint           `gorm:"index;not null" json:"order_id"`
	Action    string         `gorm:"not null" json:"action"`
	Detail    datatypes.JSON `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName specifies the table name for PackagingAudit model
func (PackagingAudit) TableName() string {
	return "packaging_audits"
}
