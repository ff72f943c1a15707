package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/enums"
)

// Order is the immutable record produced from a cart at checkout. Pricing
// fields are frozen at creation time.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNo          string            `gorm:"column:order_no;not null;uniqueIndex:uq_orders_order_no"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user"`
	CartID           uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	SubtotalCents    int64             `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int64             `gorm:"column:discount_cents;not null;default:0"`
	ShippingFeeCents int64             `gorm:"column:shipping_fee_cents;not null;default:0"`
	TotalCents       int64             `gorm:"column:total_cents;not null"`
	PromotionCode    *string           `gorm:"column:promotion_code"`
	ShippingAddress  string            `gorm:"column:shipping_address;not null"`
	Note             *string           `gorm:"column:note"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CompletedAt      *time.Time        `gorm:"column:completed_at"`
	CancelledAt      *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
