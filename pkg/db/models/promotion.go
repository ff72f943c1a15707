package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/enums"
)

// Promotion is a discount code redeemable at checkout.
type Promotion struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code             string              `gorm:"column:code;not null;uniqueIndex:uq_promotions_code"`
	Type             enums.PromotionType `gorm:"column:type;type:text;not null"`
	Value            int64               `gorm:"column:value;not null"`
	MinSubtotalCents int64               `gorm:"column:min_subtotal_cents;not null;default:0"`
	StartsAt         *time.Time          `gorm:"column:starts_at"`
	EndsAt           *time.Time          `gorm:"column:ends_at"`
	Active           bool                `gorm:"column:active;not null;default:true"`
	UsageLimit       *int                `gorm:"column:usage_limit"`
	UsedCount        int                 `gorm:"column:used_count;not null;default:0"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Promotion) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
