package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/enums"
)

// Product represents a storefront listing.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SKU         string              `gorm:"column:sku;not null;uniqueIndex:uq_products_sku"`
	Name        string              `gorm:"column:name;not null"`
	Description *string             `gorm:"column:description"`
	Category    *string             `gorm:"column:category"`
	Brand       *string             `gorm:"column:brand"`
	PriceCents  int64               `gorm:"column:price_cents;not null"`
	Images      pq.StringArray      `gorm:"column:images;type:text[]"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	Stock       *StockRecord        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
