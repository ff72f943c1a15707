package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/thanhledev/audiomart-backend/api/middleware"
	"github.com/thanhledev/audiomart-backend/api/responses"
	"github.com/thanhledev/audiomart-backend/api/validators"
	"github.com/thanhledev/audiomart-backend/internal/checkout"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
)

type createOrderRequest struct {
	PromotionCode   *string `json:"promotion_code"`
	ShippingAddress string  `json:"shipping_address" validate:"required"`
	Note            *string `json:"note"`
}

// CheckoutCreateOrder converts the caller's active cart into an order.
// Guests must claim their cart into an account first.
func CheckoutCreateOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), userID, checkout.CreateOrderInput{
			PromotionCode:   payload.PromotionCode,
			ShippingAddress: payload.ShippingAddress,
			Note:            payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
