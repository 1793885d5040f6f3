package models

import (
	"time"
)

// Product is the local mirror of the invoicing system's product catalog,
// refreshed by the background invoicing sync. The primary key is the
// external catalog id.
type Product struct {
	ID           int64      `gorm:"primaryKey;autoIncrement:false" json:"id" xmlrpc:"id"`
	InternalCode FlexString `gorm:"index" json:"default_code" xmlrpc:"default_code"` // SKU
	Barcode      FlexString `gorm:"index" json:"barcode" xmlrpc:"barcode"`           // EAN13
	Name         string     `json:"name" xmlrpc:"name"`
	Active       bool       `gorm:"default:true" json:"active" xmlrpc:"active"`
	ListPrice    float64    `json:"list_price" xmlrpc:"list_price"`
	WriteDate    time.Time  `json:"write_date" xmlrpc:"write_date"`

	LastSyncedAt time.Time `json:"last_synced_at"`
}

// TableName specifies the table name for Product model
func (Product) TableName() string { return "products" }
