package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thanhledev/audiomart-backend/api/responses"
	"github.com/thanhledev/audiomart-backend/api/validators"
	"github.com/thanhledev/audiomart-backend/internal/promotions"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

type createPromotionRequest struct {
	Code             string     `json:"code" validate:"required"`
	Type             string     `json:"type" validate:"required"`
	Value            int64      `json:"value" validate:"gt=0"`
	MinSubtotalCents int64      `json:"min_subtotal_cents" validate:"min=0"`
	StartsAt         *time.Time `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at"`
	UsageLimit       *int       `json:"usage_limit"`
}

func PromotionsCreate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPromotionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promoType, err := enums.ParsePromotionType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promotion type"))
			return
		}

		promo, err := svc.Create(r.Context(), promotions.CreateInput{
			Code:             payload.Code,
			Type:             promoType,
			Value:            payload.Value,
			MinSubtotalCents: payload.MinSubtotalCents,
			StartsAt:         payload.StartsAt,
			EndsAt:           payload.EndsAt,
			UsageLimit:       payload.UsageLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promo)
	}
}

func PromotionsList(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pagination.FromRequest(r)
		list, total, err := svc.List(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, list, pagination.NewMeta(page, total))
	}
}

type setPromotionActiveRequest struct {
	Active bool `json:"active"`
}

func PromotionsSetActive(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promoID, err := validators.ParseUUIDParam(chi.URLParam(r, "promotionID"), "promotionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setPromotionActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), promoID, payload.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": promoID, "active": payload.Active})
	}
}

type validatePromotionRequest struct {
	Code          string `json:"code" validate:"required"`
	SubtotalCents int64  `json:"subtotal_cents" validate:"min=0"`
}

// PromotionsValidate lets the storefront preview a discount before checkout.
func PromotionsValidate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload validatePromotionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Validate(r.Context(), payload.Code, payload.SubtotalCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"promotion":      promo,
			"discount_cents": promotions.ComputeDiscount(promo, payload.SubtotalCents),
		})
	}
}
