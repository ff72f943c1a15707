package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/enums"
)

// Cart is a buyer-scoped open order draft. Guest carts carry a nil UserID and
// are addressed by their cart ID token.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index:idx_carts_user"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsGuest reports whether the cart has no authenticated owner.
func (c Cart) IsGuest() bool {
	return c.UserID == nil
}
