package cart

import (
	"github.com/google/uuid"

	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
)

// Owner identifies who a cart belongs to. Exactly one field is set: UserID
// for authenticated carts, GuestCartID for anonymous carts addressed by token.
type Owner struct {
	UserID      *uuid.UUID
	GuestCartID *uuid.UUID
}

func (o Owner) validate() error {
	if (o.UserID == nil) == (o.GuestCartID == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of user or guest cart token required")
	}
	return nil
}

// Totals is the derived pricing summary for a cart. Amounts are in minor
// currency units.
type Totals struct {
	SubtotalCents    int64 `json:"subtotal_cents"`
	TaxCents         int64 `json:"tax_cents"`
	ShippingFeeCents int64 `json:"shipping_fee_cents"`
	TotalCents       int64 `json:"total_cents"`
}

// View pairs a cart with its computed totals.
type View struct {
	Cart   models.Cart `json:"cart"`
	Totals Totals      `json:"totals"`
}

// PricingOptions carries the storefront pricing rules.
type PricingOptions struct {
	TaxRateBps                 int
	FreeShippingThresholdCents int64
	FlatShippingFeeCents       int64
}
