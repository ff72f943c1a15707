package models

import (
	"time"

	"github.com/google/uuid"
)

// StockRecord tracks available/reserved counts per product.
type StockRecord struct {
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty      int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty       int       `gorm:"column:reserved_qty;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:5"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SellableQty is the quantity still open to new reservations.
func (s StockRecord) SellableQty() int {
	return s.AvailableQty - s.ReservedQty
}
