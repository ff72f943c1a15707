package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/enums"
)

// InventoryAlert records a low-stock or out-of-stock condition until an
// operator resolves it.
type InventoryAlert struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index:idx_inventory_alerts_product"`
	Type       enums.AlertType `gorm:"column:type;type:text;not null"`
	Message    string          `gorm:"column:message;not null"`
	Resolved   bool            `gorm:"column:resolved;not null;default:false"`
	ResolvedAt *time.Time      `gorm:"column:resolved_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *InventoryAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
